package excel

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

const sheetName = "Cases"

var columns = []string{
	"ID",
	"Page",
	"Frame",
	"Bundle",
	"Feature",
	"Objective",
	"Priority",
	"Severity",
	"Preconditions",
	"Steps",
	"Test data",
	"Expected result",
	"Negative cases",
	"Edge cases",
	"Accessibility",
	"Device",
	"Dependencies",
	"Notes",
	"Evaluated",
	"Evaluation status",
	"Score",
	"Checked",
	"Evaluation notes",
	"Image URL",
}

// Exporter writes one workbook per analysis with a single sheet holding one
// row per generated case.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) WriteWorkbook(analysis *domain.Analysis, w io.Writer) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if len(analysis.Cases) == 0 {
		if err := f.SetSheetRow(sheetName, "A1", &[]any{"Message"}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		msg := "No cases were generated. Check file permissions, the analysis level, or raise images_per_unit."
		if err := f.SetSheetRow(sheetName, "A2", &[]any{msg}); err != nil {
			return fmt.Errorf("write message row: %w", err)
		}
		return write(f, w)
	}

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, c := range analysis.Cases {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, caseRow(c)); err != nil {
			return fmt.Errorf("write case row: %w", err)
		}
	}

	return write(f, w)
}

func caseRow(c domain.TestCase) *[]any {
	row := []any{
		c.CaseRef,
		c.PageName,
		c.FrameName,
		c.BundleLabel,
		c.Feature,
		c.Objective,
		c.Priority,
		c.Severity,
		joinLines(c.Preconditions),
		joinLines(c.Steps),
		encodeTestData(c.TestData),
		c.ExpectedResult,
		joinLines(c.Negative),
		joinLines(c.EdgeCases),
		joinLines(c.Accessibility),
		c.Device,
		joinLines(c.Dependencies),
		c.Notes,
		c.Evaluation.Evaluated,
		c.Evaluation.Status,
		scoreCell(c.Evaluation.Score),
		c.Evaluation.Checked,
		c.Evaluation.Notes,
		c.ImageURL,
	}
	return &row
}

func write(f *excelize.File, w io.Writer) error {
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func joinLines(items []string) string {
	return strings.Join(items, "\n")
}

func encodeTestData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(raw)
}

func scoreCell(score *float64) any {
	if score == nil {
		return ""
	}
	return *score
}
