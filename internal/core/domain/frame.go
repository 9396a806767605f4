package domain

type AnalysisLevel string

const (
	LevelFrame   AnalysisLevel = "frame"
	LevelPage    AnalysisLevel = "page"
	LevelGroup   AnalysisLevel = "group"
	LevelSection AnalysisLevel = "section"
)

func ParseLevel(s string) (AnalysisLevel, bool) {
	switch AnalysisLevel(s) {
	case LevelFrame, LevelPage, LevelGroup, LevelSection:
		return AnalysisLevel(s), true
	}
	return "", false
}

// Element is a component or control detected inside a frame subtree.
type Element struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Frame is a leaf design node representing one screen or state.
// Order is the frame's position in document order across the whole file.
type Frame struct {
	NodeID      string    `json:"node_id"`
	Name        string    `json:"name"`
	PageID      string    `json:"page_id"`
	PageName    string    `json:"page_name"`
	SectionName string    `json:"section_name,omitempty"`
	GroupLabels []string  `json:"group_labels,omitempty"`
	Texts       []string  `json:"texts,omitempty"`
	Elements    []Element `json:"elements,omitempty"`
	Order       int       `json:"order"`
}

type UnitKind string

const (
	UnitFrame   UnitKind = "frame"
	UnitPage    UnitKind = "page"
	UnitGroup   UnitKind = "group"
	UnitSection UnitKind = "section"
)

// CatchAllLabel is the label of the per-page unit that collects frames not
// meeting any grouping threshold.
const CatchAllLabel = "(otros)"

// AnalysisUnit is a named grouping of one or more frames processed as a
// single model prompt. Frames keep document order.
type AnalysisUnit struct {
	Label    string
	PageName string
	Kind     UnitKind
	Frames   []Frame
}

func (u AnalysisUnit) IsCatchAll() bool {
	return u.Label == CatchAllLabel
}

// Multi reports whether cases from this unit carry a bundle label.
func (u AnalysisUnit) Multi() bool {
	return u.Kind != UnitFrame
}
