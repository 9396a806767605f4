package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
	"github.com/ncastellanos/figma-qa/internal/core/ports"
)

const (
	defaultModel           = "gpt-5"
	defaultReasoningEffort = "medium"
	defaultImageScale      = 2.0
	defaultImagesPerUnit   = 12
	defaultLevel           = domain.LevelGroup

	maxImagesPerUnit = 12
	maxFramesCap     = 200
)

// StartAnalysisUseCase validates an inbound request, persists the queued
// analysis and dispatches the job to the worker queue.
type StartAnalysisUseCase struct {
	analyses     ports.AnalysisRepository
	queue        ports.JobQueue
	defaultModel string
}

func NewStartAnalysisUseCase(analyses ports.AnalysisRepository, queue ports.JobQueue, model string) *StartAnalysisUseCase {
	if model == "" {
		model = defaultModel
	}
	return &StartAnalysisUseCase{
		analyses:     analyses,
		queue:        queue,
		defaultModel: model,
	}
}

func (uc *StartAnalysisUseCase) Start(ctx context.Context, in ports.StartAnalysisInput) (*domain.Analysis, error) {
	if in.Token == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "usecase.Start", fmt.Errorf("figma token is required"))
	}

	fileKey := in.FileKey
	if fileKey == "" {
		var err error
		fileKey, err = domain.ExtractFileKey(in.FigmaURL)
		if err != nil {
			return nil, err
		}
	}

	params, err := normalizeParams(domain.AnalysisParams{
		FileKey:         fileKey,
		FigmaURL:        in.FigmaURL,
		Level:           domain.AnalysisLevel(in.Level),
		Model:           in.Model,
		ReasoningEffort: in.ReasoningEffort,
		ImageScale:      in.ImageScale,
		ImagesPerUnit:   in.ImagesPerUnit,
		MaxFrames:       in.MaxFrames,
	}, uc.defaultModel, in.Level)
	if err != nil {
		return nil, err
	}

	return uc.enqueue(ctx, params, in.Token)
}

// Rerun starts a fresh analysis for an existing one, merging any overrides
// into the stored parameters. The original analysis is never mutated.
func (uc *StartAnalysisUseCase) Rerun(ctx context.Context, analysisID int64, token string, overrides ports.RerunOverrides) (*domain.Analysis, error) {
	if token == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "usecase.Rerun", fmt.Errorf("figma token is required"))
	}

	prior, err := uc.analyses.GetByID(ctx, analysisID, false)
	if err != nil {
		return nil, err
	}

	params := prior.Params()
	levelInput := string(params.Level)
	if overrides.Level != nil {
		params.Level = domain.AnalysisLevel(*overrides.Level)
		levelInput = *overrides.Level
	}
	if overrides.Model != nil {
		params.Model = *overrides.Model
	}
	if overrides.ReasoningEffort != nil {
		params.ReasoningEffort = *overrides.ReasoningEffort
	}
	if overrides.ImageScale != nil {
		params.ImageScale = *overrides.ImageScale
	}
	if overrides.ImagesPerUnit != nil {
		params.ImagesPerUnit = *overrides.ImagesPerUnit
	}
	if overrides.MaxFrames != nil {
		params.MaxFrames = *overrides.MaxFrames
	}

	params, err = normalizeParams(params, uc.defaultModel, levelInput)
	if err != nil {
		return nil, err
	}

	return uc.enqueue(ctx, params, token)
}

func (uc *StartAnalysisUseCase) enqueue(ctx context.Context, params domain.AnalysisParams, token string) (*domain.Analysis, error) {
	analysis := &domain.Analysis{
		JobID:           uuid.NewString(),
		FileKey:         params.FileKey,
		FigmaURL:        params.FigmaURL,
		Level:           params.Level,
		Model:           params.Model,
		ImagesPerUnit:   params.ImagesPerUnit,
		ImageScale:      params.ImageScale,
		ReasoningEffort: params.ReasoningEffort,
		MaxFrames:       params.MaxFrames,
		Status:          domain.StatusQueued,
	}
	if err := uc.analyses.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	job := domain.AnalysisJob{
		JobID:      analysis.JobID,
		Token:      token,
		Params:     params,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := uc.queue.PublishAnalysisJob(ctx, job); err != nil {
		return nil, fmt.Errorf("publish analysis job: %w", err)
	}

	return analysis, nil
}

func normalizeParams(params domain.AnalysisParams, fallbackModel, levelInput string) (domain.AnalysisParams, error) {
	if levelInput == "" {
		params.Level = defaultLevel
	} else {
		level, ok := domain.ParseLevel(levelInput)
		if !ok {
			return domain.AnalysisParams{}, domain.WrapError(
				domain.ErrInvalidInput, "usecase.Start",
				fmt.Errorf("unknown analysis level %q", levelInput),
			)
		}
		params.Level = level
	}

	if params.Model == "" {
		params.Model = fallbackModel
	}
	if params.ReasoningEffort == "" {
		params.ReasoningEffort = defaultReasoningEffort
	}

	if params.ImageScale == 0 {
		params.ImageScale = defaultImageScale
	}
	if params.ImageScale < 1 {
		params.ImageScale = 1
	}
	if params.ImageScale > 4 {
		params.ImageScale = 4
	}

	if params.ImagesPerUnit <= 0 {
		params.ImagesPerUnit = defaultImagesPerUnit
	}
	if params.ImagesPerUnit > maxImagesPerUnit {
		params.ImagesPerUnit = maxImagesPerUnit
	}

	if params.MaxFrames < 0 {
		params.MaxFrames = 0
	}
	if params.MaxFrames > maxFramesCap {
		params.MaxFrames = maxFramesCap
	}

	return params, nil
}
