package ports

import (
	"context"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

// StartAnalysisInput is the inbound analysis request. Token is the caller's
// design-API credential; it travels with the job and is never persisted.
type StartAnalysisInput struct {
	FigmaURL        string
	FileKey         string
	Token           string
	Model           string
	ReasoningEffort string
	ImageScale      float64
	ImagesPerUnit   int
	Level           string
	MaxFrames       int
}

// RerunOverrides are the optional parameter overrides for a rerun. Nil fields
// keep the stored analysis' value.
type RerunOverrides struct {
	Level           *string
	Model           *string
	ReasoningEffort *string
	ImageScale      *float64
	ImagesPerUnit   *int
	MaxFrames       *int
}

// AnalysisStarter is the inbound contract for fire-and-forget job starts.
type AnalysisStarter interface {
	Start(ctx context.Context, in StartAnalysisInput) (*domain.Analysis, error)
	Rerun(ctx context.Context, analysisID int64, token string, overrides RerunOverrides) (*domain.Analysis, error)
}

// AnalysisRunner is the inbound contract for asynchronous job execution.
type AnalysisRunner interface {
	Run(ctx context.Context, job domain.AnalysisJob) error
}
