package ports

import (
	"context"
	"io"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

// DocumentFetcher retrieves the remote design-document tree and returns the
// flattened frame list, tagged with page, section and group hints.
type DocumentFetcher interface {
	ListFrames(ctx context.Context, token, fileKey string) ([]domain.Frame, error)
}

// ImageRenderer rasterizes frames to ephemeral image URLs. Node ids missing
// from the result map failed to render and degrade to text-only prompts.
type ImageRenderer interface {
	RenderImages(ctx context.Context, token, fileKey string, nodeIDs []string, scale float64) (map[string]string, error)
}

// UnitPartitioner splits a flattened frame list into disjoint analysis units
// for the requested granularity level.
type UnitPartitioner interface {
	Partition(frames []domain.Frame, level domain.AnalysisLevel) []domain.AnalysisUnit
}

// GenerationRequest is one unit's worth of model input.
type GenerationRequest struct {
	FileKey         string
	Unit            domain.AnalysisUnit
	Images          map[string]string
	Model           string
	ReasoningEffort string
	ImagesPerUnit   int
}

// CaseGenerator drives one model call per unit and parses the response into
// normalized test cases.
type CaseGenerator interface {
	GenerateCases(ctx context.Context, req GenerationRequest) ([]domain.TestCase, error)
}

// AnalysisRepository persists analyses and their job progress.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *domain.Analysis) error
	GetByID(ctx context.Context, id int64, includeCases bool) (*domain.Analysis, error)
	GetByJobID(ctx context.Context, jobID string) (*domain.Analysis, error)
	List(ctx context.Context, limit int, fileKey string) ([]domain.Analysis, error)
	Delete(ctx context.Context, id int64) error
	MarkRunning(ctx context.Context, id int64, stage string) error
	UpdateProgress(ctx context.Context, id int64, progress domain.Progress) error
	MarkCompleted(ctx context.Context, id int64, cases []domain.TestCase) error
	MarkFailed(ctx context.Context, id int64, errMessage string) error
}

// CaseRepository reads and mutates individual persisted cases.
type CaseRepository interface {
	GetCase(ctx context.Context, analysisID, caseID int64) (*domain.TestCase, error)
	UpdateEvaluation(ctx context.Context, analysisID, caseID int64, patch domain.EvaluationPatch) (*domain.TestCase, error)
	DeleteCase(ctx context.Context, analysisID, caseID int64) error
}

// JobQueue dispatches analysis jobs from the API to the worker.
type JobQueue interface {
	PublishAnalysisJob(ctx context.Context, job domain.AnalysisJob) error
	SubscribeAnalysisJobs(ctx context.Context, handler func(context.Context, domain.AnalysisJob) error) error
}

// Exporter renders a persisted analysis to a spreadsheet.
type Exporter interface {
	WriteWorkbook(analysis *domain.Analysis, w io.Writer) error
}

// PipelineObserver receives per-unit pipeline measurements. Optional; the
// orchestrator tolerates a nil observer.
type PipelineObserver interface {
	UnitProcessed(level domain.AnalysisLevel, cases int)
	UnitSkipped(level domain.AnalysisLevel)
	RenderFailures(count int)
}
