package openai

import (
	"fmt"
	"strings"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
	"github.com/ncastellanos/figma-qa/internal/core/ports"
)

const systemPrompt = "You are a senior QA engineer building a COMPLETE functional and non-functional " +
	"test matrix from a design mockup (text plus screenshots). " +
	"Return ONLY valid JSON with the exact shape {\"cases\": [ { ... } ]}. " +
	"Every case must fill all fields: id, frame, feature, objective, preconditions (list), " +
	"steps (list, at least 6 detailed steps with concrete data), test_data (object with realistic keys and values), " +
	"expected_result (specific and measurable), negative (list of adverse scenarios), " +
	"edge_cases (list covering limits and extreme states), accessibility (list covering WCAG, keyboard navigation, screen readers), " +
	"priority, severity, device, dependencies (list), notes. " +
	"Cover the functionality exhaustively: happy path, form validation, empty and error states, permissions and roles, " +
	"cross navigation, multi-device sync, network resilience, i18n, responsive layout and assistive compatibility. " +
	"Include positive, negative and regression variations. Do not reuse generic steps; use the concrete texts and " +
	"detected components. Produce enough cases to cover the feature fully (typically 8-15 per feature). " +
	"If information is missing, assume reasonable conventions and record the assumptions in notes. " +
	"Do NOT include any text outside the JSON."

const (
	maxTextsSingleFrame    = 200
	maxElementsSingleFrame = 100
	maxTextsPerFrame       = 6
	maxElementsPerFrame    = 8
)

func buildMessages(req ports.GenerationRequest) []chatMessage {
	var parts []contentPart
	if req.Unit.Multi() {
		parts = append(parts, contentPart{Type: "text", Text: buildUnitText(req)})
		limit := req.ImagesPerUnit
		if limit <= 0 || limit > len(req.Unit.Frames) {
			limit = len(req.Unit.Frames)
		}
		for _, f := range req.Unit.Frames[:limit] {
			url, ok := req.Images[f.NodeID]
			if !ok {
				continue
			}
			parts = append(parts,
				contentPart{Type: "text", Text: "Frame screenshot: " + f.Name},
				contentPart{Type: "image_url", ImageURL: &imageRef{URL: url}},
			)
		}
	} else {
		frame := req.Unit.Frames[0]
		parts = append(parts, contentPart{Type: "text", Text: buildFrameText(req.FileKey, frame)})
		if url, ok := req.Images[frame.NodeID]; ok {
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageRef{URL: url}})
		}
	}

	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: parts},
	}
}

func buildFrameText(fileKey string, frame domain.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", fileKey)
	fmt.Fprintf(&b, "Page: %s\n", frame.PageName)
	fmt.Fprintf(&b, "Frame: %s (id %s)\n\n", frame.Name, frame.NodeID)

	b.WriteString("Detected texts:\n")
	for _, t := range capStrings(frame.Texts, maxTextsSingleFrame) {
		fmt.Fprintf(&b, "- %s\n", t)
	}

	b.WriteString("\nDetected controls:\n")
	for _, el := range capElements(frame.Elements, maxElementsSingleFrame) {
		fmt.Fprintf(&b, "- %s: %s\n", el.Type, el.Name)
	}

	b.WriteString("\nGoal: generate functional test cases for this frame, covering complete flows and realistic validations.")
	return b.String()
}

func buildUnitText(req ports.GenerationRequest) string {
	unit := req.Unit

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", req.FileKey)
	fmt.Fprintf(&b, "Page: %s\n", unit.PageName)
	if unit.Kind != domain.UnitPage {
		fmt.Fprintf(&b, "Target group: %s\n", unit.Label)
	}
	b.WriteString("\nRelevant frames:\n")

	limit := req.ImagesPerUnit
	if limit <= 0 || limit > len(unit.Frames) {
		limit = len(unit.Frames)
	}
	for _, f := range unit.Frames[:limit] {
		fmt.Fprintf(&b, "- Frame: %s (id %s)\n", f.Name, f.NodeID)
		if len(f.Elements) > 0 {
			var names []string
			for _, el := range capElements(f.Elements, maxElementsPerFrame) {
				names = append(names, el.Type+":"+el.Name)
			}
			fmt.Fprintf(&b, "  controls: %s\n", strings.Join(names, ", "))
		}
		if len(f.Texts) > 0 {
			fmt.Fprintf(&b, "  texts: %s\n", strings.Join(capStrings(f.Texts, maxTextsPerFrame), ", "))
		}
	}

	b.WriteString("\nGoal: generate FUNCTIONAL test cases for the indicated scope, consolidating behaviors and validations " +
		"shared across the frames. Avoid duplicating identical cases per frame.")
	return b.String()
}

func capStrings(items []string, limit int) []string {
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}

func capElements(items []domain.Element, limit int) []domain.Element {
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}
