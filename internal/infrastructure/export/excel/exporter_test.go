package excel

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

func TestWriteWorkbookOneRowPerCase(t *testing.T) {
	score := 85.0
	analysis := &domain.Analysis{
		ID:      1,
		FileKey: "abc123def456",
		Cases: []domain.TestCase{
			{
				CaseRef:        "TC-001",
				PageName:       "Auth",
				FrameName:      "Login",
				Feature:        "Login",
				Objective:      "Validate credentials",
				Priority:       "high",
				Steps:          []string{"open app", "enter email", "submit"},
				TestData:       map[string]any{"email": "qa@example.com"},
				ExpectedResult: "dashboard shown",
				Evaluation: domain.Evaluation{
					Evaluated: true,
					Status:    "passed",
					Score:     &score,
					Checked:   true,
				},
			},
			{
				CaseRef:     "TC-002",
				PageName:    "Auth",
				FrameName:   "login",
				BundleLabel: "login",
				Objective:   "Reject bad password",
				Evaluation:  domain.Evaluation{Status: domain.EvaluationStatusPending},
			},
		},
	}

	var buf bytes.Buffer
	if err := New().WriteWorkbook(analysis, &buf); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Cases")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][1] != "Page" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "TC-001" || rows[1][5] != "Validate credentials" {
		t.Fatalf("unexpected first case row: %v", rows[1])
	}
	if rows[1][9] != "open app\nenter email\nsubmit" {
		t.Fatalf("steps not joined with newlines: %q", rows[1][9])
	}
	if rows[2][3] != "login" {
		t.Fatalf("bundle label missing: %v", rows[2])
	}
}

func TestWriteWorkbookEmptyAnalysisWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	if err := New().WriteWorkbook(&domain.Analysis{ID: 1}, &buf); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Cases")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "Message" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}
