package domain

// TestCase is a generated QA case. CaseRef identifiers are assigned by the
// orchestrator, monotonically increasing and unique within one Analysis.
type TestCase struct {
	ID             int64          `json:"case_id,omitempty"`
	CaseRef        string         `json:"id"`
	Feature        string         `json:"feature,omitempty"`
	Objective      string         `json:"objective,omitempty"`
	Preconditions  []string       `json:"preconditions,omitempty"`
	Steps          []string       `json:"steps,omitempty"`
	TestData       map[string]any `json:"test_data,omitempty"`
	ExpectedResult string         `json:"expected_result,omitempty"`
	Negative       []string       `json:"negative,omitempty"`
	EdgeCases      []string       `json:"edge_cases,omitempty"`
	Accessibility  []string       `json:"accessibility,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	Severity       string         `json:"severity,omitempty"`
	Device         string         `json:"device,omitempty"`
	Dependencies   []string       `json:"dependencies,omitempty"`
	Notes          string         `json:"notes,omitempty"`

	PageName    string `json:"page_name"`
	FrameName   string `json:"frame_name"`
	NodeID      string `json:"node_id"`
	BundleLabel string `json:"bundle_label,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	CaseIndex   int    `json:"case_index"`

	Evaluation Evaluation `json:"evaluation"`
}

// Evaluation is the reviewer-owned sub-record attached to each case. It is
// mutated independently after generation.
type Evaluation struct {
	Evaluated bool     `json:"evaluated"`
	Status    string   `json:"status"`
	Score     *float64 `json:"score,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	Checked   bool     `json:"checked"`
}

const EvaluationStatusPending = "pending"

// EvaluationPatch updates only the fields a reviewer provided. ScoreSet
// distinguishes "clear the score" from "leave it alone".
type EvaluationPatch struct {
	Evaluated *bool
	Status    *string
	Score     *float64
	ScoreSet  bool
	Notes     *string
	Checked   *bool
}

func (p EvaluationPatch) Empty() bool {
	return p.Evaluated == nil && p.Status == nil && !p.ScoreSet && p.Notes == nil && p.Checked == nil
}

// Apply folds the patch into an evaluation.
func (p EvaluationPatch) Apply(ev Evaluation) Evaluation {
	if p.Evaluated != nil {
		ev.Evaluated = *p.Evaluated
	}
	if p.Status != nil {
		ev.Status = *p.Status
	}
	if p.ScoreSet {
		ev.Score = p.Score
	}
	if p.Notes != nil {
		ev.Notes = *p.Notes
	}
	if p.Checked != nil {
		ev.Checked = *p.Checked
	}
	return ev
}
