package openai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

// caseListKeys are the top-level keys models use for the case array,
// regardless of the key the prompt asked for.
var caseListKeys = []string{"cases", "casos", "test_cases", "testcases", "pruebas"}

type parseError struct {
	reason string
	cause  error
}

func (e *parseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("parse model response: %s: %v", e.reason, e.cause)
	}
	return "parse model response: " + e.reason
}

func (e *parseError) Unwrap() error { return e.cause }

// parseCases turns a free-form model response into normalized cases. The
// model is instructed to return a bare JSON object, but responses wrapped in
// code fences, prefixed with prose, or keyed under a synonym are accepted.
func parseCases(raw string) ([]domain.TestCase, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, &parseError{reason: "no JSON payload found"}
	}

	var list []any
	if strings.HasPrefix(payload, "[") {
		if err := json.Unmarshal([]byte(payload), &list); err != nil {
			return nil, &parseError{reason: "invalid JSON array", cause: err}
		}
	} else {
		var envelope map[string]any
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			return nil, &parseError{reason: "invalid JSON object", cause: err}
		}
		for _, key := range caseListKeys {
			if v, ok := envelope[key].([]any); ok {
				list = v
				break
			}
		}
		if list == nil {
			return nil, nil
		}
	}

	cases := make([]domain.TestCase, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		cases = append(cases, decodeCase(entry))
	}
	return cases, nil
}

// extractJSON strips code fences and surrounding prose, returning the
// outermost JSON object or array.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	if objStart < 0 && arrStart < 0 {
		return ""
	}
	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if end := strings.LastIndex(s, "}"); end > objStart {
			return s[objStart : end+1]
		}
		return ""
	}
	if end := strings.LastIndex(s, "]"); end > arrStart {
		return s[arrStart : end+1]
	}
	return ""
}

func decodeCase(entry map[string]any) domain.TestCase {
	return domain.TestCase{
		CaseRef:        pickString(entry, "id"),
		Feature:        pickString(entry, "feature"),
		Objective:      pickString(entry, "objective", "objetivo"),
		Preconditions:  pickStrings(entry, "preconditions", "precondiciones"),
		Steps:          pickStrings(entry, "steps", "pasos"),
		TestData:       pickMap(entry, "test_data", "datos_prueba"),
		ExpectedResult: pickString(entry, "expected_result", "resultado_esperado"),
		Negative:       pickStrings(entry, "negative", "negativo"),
		EdgeCases:      pickStrings(entry, "edge_cases", "bordes"),
		Accessibility:  pickStrings(entry, "accessibility", "accesibilidad"),
		Priority:       pickString(entry, "priority", "prioridad"),
		Severity:       pickString(entry, "severity", "severidad"),
		Device:         pickString(entry, "device", "dispositivo"),
		Dependencies:   pickStrings(entry, "dependencies", "dependencias"),
		Notes:          pickString(entry, "notes", "observaciones"),
		FrameName:      pickString(entry, "frame"),
		ImageURL:       pickString(entry, "image_url"),
	}
}

func pickString(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := entry[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// pickStrings accepts either a JSON array or a single string for list-shaped
// fields.
func pickStrings(entry map[string]any, keys ...string) []string {
	for _, key := range keys {
		switch v := entry[key].(type) {
		case []any:
			var out []string
			for _, item := range v {
				if s, ok := item.(string); ok {
					if trimmed := strings.TrimSpace(s); trimmed != "" {
						out = append(out, trimmed)
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return []string{s}
			}
		}
	}
	return nil
}

func pickMap(entry map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if m, ok := entry[key].(map[string]any); ok && len(m) > 0 {
			return m
		}
	}
	return nil
}
