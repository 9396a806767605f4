package grouping

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

// Limits bound how many units the partitioner may emit. Zero values fall
// back to the documented defaults.
type Limits struct {
	MinFramesPerUnit   int
	MaxGroupsPerPage   int
	MaxSectionsPerPage int
	MaxGroupsGlobal    int
	MaxSectionsGlobal  int
}

func DefaultLimits() Limits {
	return Limits{
		MinFramesPerUnit:   2,
		MaxGroupsPerPage:   8,
		MaxSectionsPerPage: 10,
		MaxGroupsGlobal:    12,
		MaxSectionsGlobal:  12,
	}
}

func (l Limits) normalize() Limits {
	def := DefaultLimits()
	if l.MinFramesPerUnit <= 0 {
		l.MinFramesPerUnit = def.MinFramesPerUnit
	}
	if l.MaxGroupsPerPage <= 0 {
		l.MaxGroupsPerPage = def.MaxGroupsPerPage
	}
	if l.MaxSectionsPerPage <= 0 {
		l.MaxSectionsPerPage = def.MaxSectionsPerPage
	}
	if l.MaxGroupsGlobal <= 0 {
		l.MaxGroupsGlobal = def.MaxGroupsGlobal
	}
	if l.MaxSectionsGlobal <= 0 {
		l.MaxSectionsGlobal = def.MaxSectionsGlobal
	}
	return l
}

// Partitioner splits a flattened frame list into disjoint analysis units.
// Every input frame lands in exactly one unit: frames whose grouping does not
// meet the size threshold, or whose group fell outside the per-page or global
// caps, are folded into the owning page's "(otros)" catch-all.
type Partitioner struct {
	limits Limits
}

func New(limits Limits) *Partitioner {
	return &Partitioner{limits: limits.normalize()}
}

func (p *Partitioner) Partition(frames []domain.Frame, level domain.AnalysisLevel) []domain.AnalysisUnit {
	if len(frames) == 0 {
		return nil
	}
	switch level {
	case domain.LevelFrame:
		return frameUnits(frames)
	case domain.LevelPage:
		return pageUnits(frames)
	case domain.LevelSection:
		return p.labelledUnits(frames, domain.UnitSection, sectionKey, p.limits.MaxSectionsPerPage, p.limits.MaxSectionsGlobal)
	case domain.LevelGroup:
		return p.labelledUnits(frames, domain.UnitGroup, groupKey, p.limits.MaxGroupsPerPage, p.limits.MaxGroupsGlobal)
	default:
		return pageUnits(frames)
	}
}

func frameUnits(frames []domain.Frame) []domain.AnalysisUnit {
	units := make([]domain.AnalysisUnit, 0, len(frames))
	for _, frame := range frames {
		units = append(units, domain.AnalysisUnit{
			Label:    frame.Name,
			PageName: frame.PageName,
			Kind:     domain.UnitFrame,
			Frames:   []domain.Frame{frame},
		})
	}
	return units
}

func pageUnits(frames []domain.Frame) []domain.AnalysisUnit {
	var pageOrder []string
	byPage := make(map[string][]domain.Frame)
	names := make(map[string]string)
	for _, frame := range frames {
		if _, seen := byPage[frame.PageID]; !seen {
			pageOrder = append(pageOrder, frame.PageID)
			names[frame.PageID] = frame.PageName
		}
		byPage[frame.PageID] = append(byPage[frame.PageID], frame)
	}

	units := make([]domain.AnalysisUnit, 0, len(pageOrder))
	for _, pageID := range pageOrder {
		units = append(units, domain.AnalysisUnit{
			Label:    names[pageID],
			PageName: names[pageID],
			Kind:     domain.UnitPage,
			Frames:   byPage[pageID],
		})
	}
	return units
}

// keyFunc returns the grouping label of a frame, empty when the frame has no
// qualifying container for the level.
type keyFunc func(domain.Frame) string

type candidate struct {
	pageIdx    int
	label      string
	frames     []domain.Frame
	firstOrder int
}

type pageBucket struct {
	pageID    string
	pageName  string
	frames    []domain.Frame
	kept      []*candidate
	leftovers []domain.Frame
}

func (p *Partitioner) labelledUnits(frames []domain.Frame, kind domain.UnitKind, key keyFunc, perPage, global int) []domain.AnalysisUnit {
	pages := splitPages(frames)

	var all []*candidate
	for pageIdx, page := range pages {
		var labelOrder []string
		byLabel := make(map[string][]domain.Frame)
		for _, frame := range page.frames {
			label := key(frame)
			if label == "" {
				label = prefixOf(frame.Name)
			}
			if label == "" {
				page.leftovers = append(page.leftovers, frame)
				continue
			}
			if _, seen := byLabel[label]; !seen {
				labelOrder = append(labelOrder, label)
			}
			byLabel[label] = append(byLabel[label], frame)
		}

		var eligible []*candidate
		for _, label := range labelOrder {
			members := byLabel[label]
			if len(members) < p.limits.MinFramesPerUnit {
				page.leftovers = append(page.leftovers, members...)
				continue
			}
			eligible = append(eligible, &candidate{
				pageIdx:    pageIdx,
				label:      label,
				frames:     members,
				firstOrder: members[0].Order,
			})
		}

		rankBySize(eligible)
		if len(eligible) > perPage {
			for _, dropped := range eligible[perPage:] {
				page.leftovers = append(page.leftovers, dropped.frames...)
			}
			eligible = eligible[:perPage]
		}
		page.kept = eligible
		all = append(all, eligible...)
	}

	if global > 0 && len(all) > global {
		rankBySize(all)
		for _, dropped := range all[global:] {
			page := pages[dropped.pageIdx]
			page.leftovers = append(page.leftovers, dropped.frames...)
			page.kept = removeCandidate(page.kept, dropped)
		}
	}

	var units []domain.AnalysisUnit
	for _, page := range pages {
		rankBySize(page.kept)
		for _, cand := range page.kept {
			units = append(units, domain.AnalysisUnit{
				Label:    cand.label,
				PageName: page.pageName,
				Kind:     kind,
				Frames:   sortedByOrder(cand.frames),
			})
		}
		if len(page.leftovers) > 0 {
			units = append(units, domain.AnalysisUnit{
				Label:    domain.CatchAllLabel,
				PageName: page.pageName,
				Kind:     kind,
				Frames:   sortedByOrder(page.leftovers),
			})
		}
	}
	return units
}

func splitPages(frames []domain.Frame) []*pageBucket {
	var pages []*pageBucket
	index := make(map[string]*pageBucket)
	for _, frame := range frames {
		page, ok := index[frame.PageID]
		if !ok {
			page = &pageBucket{pageID: frame.PageID, pageName: frame.PageName}
			index[frame.PageID] = page
			pages = append(pages, page)
		}
		page.frames = append(page.frames, frame)
	}
	return pages
}

// rankBySize orders candidates by member count descending; equal counts rank
// the unit whose first frame appears earlier in document order higher.
func rankBySize(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if len(cands[i].frames) != len(cands[j].frames) {
			return len(cands[i].frames) > len(cands[j].frames)
		}
		return cands[i].firstOrder < cands[j].firstOrder
	})
}

func removeCandidate(cands []*candidate, target *candidate) []*candidate {
	out := cands[:0]
	for _, c := range cands {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

func sortedByOrder(frames []domain.Frame) []domain.Frame {
	out := make([]domain.Frame, len(frames))
	copy(out, frames)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func sectionKey(frame domain.Frame) string {
	return strings.TrimSpace(frame.SectionName)
}

// groupKey picks the frame's first detected container label so the partition
// stays disjoint even when a frame sits under several named containers.
func groupKey(frame domain.Frame) string {
	for _, label := range frame.GroupLabels {
		if norm := normalizeLabel(label); norm != "" {
			return norm
		}
	}
	for _, el := range frame.Elements {
		if el.Type == "group" || el.Type == "component" {
			if norm := normalizeLabel(el.Name); norm != "" {
				return norm
			}
		}
	}
	return ""
}

var (
	separatorRe = regexp.MustCompile(`\s*[\/:|>›»–\-]+\s*`)
	variantRe   = regexp.MustCompile(`\b(primary|secondary|tertiary|default|filled|outlined|ghost|success|warning|error|info|active|inactive|disabled)\b`)
	spacesRe    = regexp.MustCompile(`\s+`)
)

// normalizeLabel folds naming-convention variants of the same component into
// one grouping key.
func normalizeLabel(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	if parts := separatorRe.Split(s, -1); len(parts) > 0 {
		s = strings.TrimSpace(parts[0])
	}
	s = variantRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
	return s
}

// prefixOf derives a stable grouping prefix from a frame name when no
// container label is available.
func prefixOf(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	parts := separatorRe.Split(s, -1)
	base := s
	if len(parts) > 0 {
		base = strings.TrimSpace(parts[0])
	}
	return strings.TrimSpace(spacesRe.ReplaceAllString(base, " "))
}
