package grouping

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

func frame(nodeID, name, pageID, pageName, section string, order int, groups ...string) domain.Frame {
	return domain.Frame{
		NodeID:      nodeID,
		Name:        name,
		PageID:      pageID,
		PageName:    pageName,
		SectionName: section,
		GroupLabels: groups,
		Order:       order,
	}
}

func assertExactPartition(t *testing.T, frames []domain.Frame, units []domain.AnalysisUnit) {
	t.Helper()
	seen := make(map[string]int)
	for _, unit := range units {
		for _, f := range unit.Frames {
			seen[f.NodeID]++
		}
	}
	if len(seen) != len(frames) {
		t.Fatalf("expected %d distinct frames in units, got %d", len(frames), len(seen))
	}
	for _, f := range frames {
		if seen[f.NodeID] != 1 {
			t.Fatalf("frame %s appears %d times", f.NodeID, seen[f.NodeID])
		}
	}
}

func TestPartitionFrameLevelOneUnitPerFrame(t *testing.T) {
	frames := []domain.Frame{
		frame("1", "Login", "p1", "Auth", "", 0),
		frame("2", "Signup", "p1", "Auth", "", 1),
		frame("3", "Home", "p2", "Main", "", 2),
	}

	units := New(Limits{}).Partition(frames, domain.LevelFrame)
	if len(units) != len(frames) {
		t.Fatalf("expected %d units, got %d", len(frames), len(units))
	}
	assertExactPartition(t, frames, units)
	for i, unit := range units {
		if unit.Kind != domain.UnitFrame || len(unit.Frames) != 1 {
			t.Fatalf("unit %d is not a single-frame unit: %+v", i, unit)
		}
		if unit.Label != frames[i].Name {
			t.Fatalf("unit %d label = %q, want %q", i, unit.Label, frames[i].Name)
		}
	}
}

func TestPartitionPageLevelOneUnitPerPage(t *testing.T) {
	frames := []domain.Frame{
		frame("1", "Login", "p1", "Auth", "", 0),
		frame("2", "Signup", "p1", "Auth", "", 1),
		frame("3", "Home", "p2", "Main", "", 2),
	}

	units := New(Limits{}).Partition(frames, domain.LevelPage)
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	assertExactPartition(t, frames, units)
	if units[0].Label != "Auth" || len(units[0].Frames) != 2 {
		t.Fatalf("unexpected first page unit: %+v", units[0])
	}
	if units[1].Label != "Main" || len(units[1].Frames) != 1 {
		t.Fatalf("unexpected second page unit: %+v", units[1])
	}
}

func TestPartitionSectionLevelGroupsBySectionWithPrefixFallback(t *testing.T) {
	frames := []domain.Frame{
		frame("1", "Resumen", "p1", "Checkout", "Pago", 0),
		frame("2", "Confirmación", "p1", "Checkout", "Pago", 1),
		frame("3", "Login / Paso 1", "p1", "Checkout", "", 2),
		frame("4", "Login / Paso 2", "p1", "Checkout", "", 3),
		frame("5", "Ayuda", "p1", "Checkout", "", 4),
	}

	units := New(Limits{}).Partition(frames, domain.LevelSection)
	assertExactPartition(t, frames, units)
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d: %+v", len(units), units)
	}
	if units[0].Label != "Pago" || len(units[0].Frames) != 2 {
		t.Fatalf("unexpected section unit: %+v", units[0])
	}
	if units[1].Label != "login" || len(units[1].Frames) != 2 {
		t.Fatalf("unexpected prefix unit: %+v", units[1])
	}
	last := units[len(units)-1]
	if !last.IsCatchAll() || len(last.Frames) != 1 || last.Frames[0].NodeID != "5" {
		t.Fatalf("unexpected catch-all: %+v", last)
	}
}

func TestPartitionGroupLevelCatchAllScenario(t *testing.T) {
	frames := []domain.Frame{
		frame("a1", "A1", "pA", "A", "", 0),
		frame("a2", "A2", "pA", "A", "", 1),
		frame("a3", "A3", "pA", "A", "", 2),
		frame("a4", "A4", "pA", "A", "", 3),
		frame("b1", "B1", "pB", "B", "", 4),
	}

	units := New(Limits{MinFramesPerUnit: 2}).Partition(frames, domain.LevelGroup)
	assertExactPartition(t, frames, units)
	if len(units) != 2 {
		t.Fatalf("expected one catch-all per page, got %d: %+v", len(units), units)
	}
	if !units[0].IsCatchAll() || units[0].PageName != "A" || len(units[0].Frames) != 4 {
		t.Fatalf("unexpected page A unit: %+v", units[0])
	}
	if !units[1].IsCatchAll() || units[1].PageName != "B" || len(units[1].Frames) != 1 {
		t.Fatalf("unexpected page B unit: %+v", units[1])
	}
}

func TestPartitionGroupLevelUsesContainerLabels(t *testing.T) {
	frames := []domain.Frame{
		frame("1", "Card A", "p1", "Main", "", 0, "Card / Primary"),
		frame("2", "Card B", "p1", "Main", "", 1, "Card / Secondary"),
		frame("3", "Nav A", "p1", "Main", "", 2, "Navbar"),
		frame("4", "Nav B", "p1", "Main", "", 3, "Navbar"),
		frame("5", "Nav C", "p1", "Main", "", 4, "Navbar"),
	}

	units := New(Limits{}).Partition(frames, domain.LevelGroup)
	assertExactPartition(t, frames, units)
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d: %+v", len(units), units)
	}
	// Navbar has more members so it ranks first.
	if units[0].Label != "navbar" || len(units[0].Frames) != 3 {
		t.Fatalf("unexpected first unit: %+v", units[0])
	}
	// Variant suffixes normalize into the same card group.
	if units[1].Label != "card" || len(units[1].Frames) != 2 {
		t.Fatalf("unexpected second unit: %+v", units[1])
	}
}

func TestPartitionPerPageCapFoldsExcessIntoCatchAll(t *testing.T) {
	var frames []domain.Frame
	order := 0
	for g := 0; g < 4; g++ {
		for i := 0; i < 2; i++ {
			name := fmt.Sprintf("G%d / state %d", g, i)
			frames = append(frames, frame(fmt.Sprintf("n%d", order), name, "p1", "Main", "", order))
			order++
		}
	}

	units := New(Limits{MinFramesPerUnit: 2, MaxGroupsPerPage: 2, MaxGroupsGlobal: 12}).Partition(frames, domain.LevelGroup)
	assertExactPartition(t, frames, units)
	if len(units) != 3 {
		t.Fatalf("expected 2 kept groups plus catch-all, got %d: %+v", len(units), units)
	}
	last := units[len(units)-1]
	if !last.IsCatchAll() || len(last.Frames) != 4 {
		t.Fatalf("expected 4 folded frames in catch-all, got %+v", last)
	}
	// Equal sizes tie-break by document order of the first frame.
	if units[0].Label != "g0" || units[1].Label != "g1" {
		t.Fatalf("unexpected kept order: %q, %q", units[0].Label, units[1].Label)
	}
}

func TestPartitionGlobalCapAcrossPages(t *testing.T) {
	var frames []domain.Frame
	order := 0
	addGroup := func(pageID, pageName, label string, size int) {
		for i := 0; i < size; i++ {
			frames = append(frames, frame(fmt.Sprintf("n%d", order), fmt.Sprintf("%s / %d", label, i), pageID, pageName, "", order))
			order++
		}
	}
	addGroup("p1", "One", "alpha", 4)
	addGroup("p1", "One", "beta", 2)
	addGroup("p2", "Two", "gamma", 3)

	units := New(Limits{MinFramesPerUnit: 2, MaxGroupsPerPage: 8, MaxGroupsGlobal: 2}).Partition(frames, domain.LevelGroup)
	assertExactPartition(t, frames, units)

	var labels []string
	for _, u := range units {
		labels = append(labels, u.Label)
	}
	// beta (2 members) is the smallest group so the global cap folds it into
	// page One's catch-all.
	want := []string{"alpha", domain.CatchAllLabel, "gamma"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("unit labels = %v, want %v", labels, want)
	}
}

func TestPartitionIsDeterministic(t *testing.T) {
	frames := []domain.Frame{
		frame("1", "Login / 1", "p1", "Auth", "", 0),
		frame("2", "Login / 2", "p1", "Auth", "", 1),
		frame("3", "Signup / 1", "p1", "Auth", "", 2),
		frame("4", "Signup / 2", "p1", "Auth", "", 3),
		frame("5", "Reset", "p1", "Auth", "", 4),
	}

	p := New(Limits{})
	first := p.Partition(frames, domain.LevelGroup)
	for i := 0; i < 10; i++ {
		again := p.Partition(frames, domain.LevelGroup)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("partition output changed between runs:\n%+v\n%+v", first, again)
		}
	}
}
