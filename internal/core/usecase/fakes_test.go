package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
	"github.com/ncastellanos/figma-qa/internal/core/ports"
)

type fakeAnalysisRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Analysis
	byJob  map[string]int64

	completedWith []domain.TestCase
	failedWith    string
	progress      []domain.Progress
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{
		byID:  make(map[int64]*domain.Analysis),
		byJob: make(map[string]int64),
	}
}

func (r *fakeAnalysisRepo) Create(_ context.Context, analysis *domain.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	analysis.ID = r.nextID
	copied := *analysis
	r.byID[analysis.ID] = &copied
	r.byJob[analysis.JobID] = analysis.ID
	return nil
}

func (r *fakeAnalysisRepo) GetByID(_ context.Context, id int64, _ bool) (*domain.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAnalysisNotFound
	}
	copied := *analysis
	return &copied, nil
}

func (r *fakeAnalysisRepo) GetByJobID(_ context.Context, jobID string) (*domain.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byJob[jobID]
	if !ok {
		return nil, domain.ErrAnalysisNotFound
	}
	copied := *r.byID[id]
	return &copied, nil
}

func (r *fakeAnalysisRepo) List(context.Context, int, string) ([]domain.Analysis, error) {
	return nil, nil
}

func (r *fakeAnalysisRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrAnalysisNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *fakeAnalysisRepo) MarkRunning(_ context.Context, id int64, stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis := r.byID[id]
	analysis.Status = domain.StatusRunning
	analysis.Stage = stage
	return nil
}

func (r *fakeAnalysisRepo) UpdateProgress(_ context.Context, id int64, progress domain.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progress)
	analysis := r.byID[id]
	analysis.Stage = progress.Stage
	analysis.ProcessedUnits = progress.ProcessedUnits
	analysis.TotalUnits = progress.TotalUnits
	analysis.TotalCases = progress.TotalCases
	return nil
}

func (r *fakeAnalysisRepo) MarkCompleted(_ context.Context, id int64, cases []domain.TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completedWith = cases
	analysis := r.byID[id]
	analysis.Status = domain.StatusCompleted
	analysis.Stage = domain.StageCompleted
	analysis.TotalCases = len(cases)
	return nil
}

func (r *fakeAnalysisRepo) MarkFailed(_ context.Context, id int64, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedWith = errMessage
	analysis := r.byID[id]
	analysis.Status = domain.StatusFailed
	analysis.Error = errMessage
	return nil
}

type fakeQueue struct {
	published []domain.AnalysisJob
	publishFn func(domain.AnalysisJob) error
}

func (q *fakeQueue) PublishAnalysisJob(_ context.Context, job domain.AnalysisJob) error {
	if q.publishFn != nil {
		if err := q.publishFn(job); err != nil {
			return err
		}
	}
	q.published = append(q.published, job)
	return nil
}

func (q *fakeQueue) SubscribeAnalysisJobs(context.Context, func(context.Context, domain.AnalysisJob) error) error {
	return nil
}

type fakeFetcher struct {
	frames []domain.Frame
	err    error
}

func (f *fakeFetcher) ListFrames(context.Context, string, string) ([]domain.Frame, error) {
	return f.frames, f.err
}

// framePartitioner emits one unit per frame, mirroring the frame level.
type framePartitioner struct{}

func (framePartitioner) Partition(frames []domain.Frame, _ domain.AnalysisLevel) []domain.AnalysisUnit {
	var units []domain.AnalysisUnit
	for _, f := range frames {
		units = append(units, domain.AnalysisUnit{
			Label:    f.Name,
			PageName: f.PageName,
			Kind:     domain.UnitFrame,
			Frames:   []domain.Frame{f},
		})
	}
	return units
}

// bundlePartitioner emits a single multi-frame unit.
type bundlePartitioner struct {
	label string
}

func (p bundlePartitioner) Partition(frames []domain.Frame, _ domain.AnalysisLevel) []domain.AnalysisUnit {
	if len(frames) == 0 {
		return nil
	}
	return []domain.AnalysisUnit{{
		Label:    p.label,
		PageName: frames[0].PageName,
		Kind:     domain.UnitGroup,
		Frames:   frames,
	}}
}

type fakeRenderer struct {
	images    map[string]string
	err       error
	requested []string
}

func (r *fakeRenderer) RenderImages(_ context.Context, _, _ string, nodeIDs []string, _ float64) (map[string]string, error) {
	r.requested = nodeIDs
	if r.err != nil {
		return nil, r.err
	}
	return r.images, nil
}

// fakeGenerator yields a fixed number of cases per unit, or the configured
// error for unit labels listed in failFor.
type fakeGenerator struct {
	casesPerUnit int
	failFor      map[string]error
	requests     []ports.GenerationRequest
}

func (g *fakeGenerator) GenerateCases(_ context.Context, req ports.GenerationRequest) ([]domain.TestCase, error) {
	g.requests = append(g.requests, req)
	if err, ok := g.failFor[req.Unit.Label]; ok {
		return nil, err
	}
	var out []domain.TestCase
	for i := 0; i < g.casesPerUnit; i++ {
		out = append(out, domain.TestCase{
			Objective: fmt.Sprintf("%s objective %d", req.Unit.Label, i+1),
		})
	}
	return out, nil
}

type fakeObserver struct {
	processed int
	skipped   int
	renderErr int
}

func (o *fakeObserver) UnitProcessed(_ domain.AnalysisLevel, _ int) { o.processed++ }
func (o *fakeObserver) UnitSkipped(domain.AnalysisLevel)           { o.skipped++ }
func (o *fakeObserver) RenderFailures(count int)                   { o.renderErr += count }
