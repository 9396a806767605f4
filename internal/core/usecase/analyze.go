package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
	"github.com/ncastellanos/figma-qa/internal/core/ports"
)

// RunAnalysisUseCase is the worker-side orchestrator: it drives one analysis
// job through fetch, partition, render, generation and persistence. Unit
// failures are absorbed so one bad unit never discards the rest of the run.
type RunAnalysisUseCase struct {
	analyses    ports.AnalysisRepository
	fetcher     ports.DocumentFetcher
	partitioner ports.UnitPartitioner
	renderer    ports.ImageRenderer
	generator   ports.CaseGenerator
	observer    ports.PipelineObserver
}

func NewRunAnalysisUseCase(
	analyses ports.AnalysisRepository,
	fetcher ports.DocumentFetcher,
	partitioner ports.UnitPartitioner,
	renderer ports.ImageRenderer,
	generator ports.CaseGenerator,
	observer ports.PipelineObserver,
) *RunAnalysisUseCase {
	return &RunAnalysisUseCase{
		analyses:    analyses,
		fetcher:     fetcher,
		partitioner: partitioner,
		renderer:    renderer,
		generator:   generator,
		observer:    observer,
	}
}

func (uc *RunAnalysisUseCase) Run(ctx context.Context, job domain.AnalysisJob) error {
	analysis, err := uc.analyses.GetByJobID(ctx, job.JobID)
	if err != nil {
		return fmt.Errorf("load analysis for job %s: %w", job.JobID, err)
	}
	params := job.Params
	log := slog.With("job_id", job.JobID, "analysis_id", analysis.ID, "file_key", params.FileKey)

	if err := uc.analyses.MarkRunning(ctx, analysis.ID, domain.StageFetchDocument); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	frames, err := uc.fetcher.ListFrames(ctx, job.Token, params.FileKey)
	if err != nil {
		return uc.fail(ctx, log, analysis.ID, err)
	}
	if params.MaxFrames > 0 && len(frames) > params.MaxFrames {
		frames = frames[:params.MaxFrames]
	}
	log.Info("document_fetched", "frames", len(frames))

	if len(frames) == 0 {
		if err := uc.analyses.MarkCompleted(ctx, analysis.ID, nil); err != nil {
			return fmt.Errorf("complete empty analysis: %w", err)
		}
		log.Info("analysis_completed", "units", 0, "cases", 0)
		return nil
	}

	units := uc.partitioner.Partition(frames, params.Level)
	if err := uc.analyses.UpdateProgress(ctx, analysis.ID, domain.Progress{
		Stage:      domain.StagePartition,
		TotalUnits: len(units),
	}); err != nil {
		return fmt.Errorf("record partition progress: %w", err)
	}
	log.Info("frames_partitioned", "level", params.Level, "units", len(units))

	if err := uc.analyses.UpdateProgress(ctx, analysis.ID, domain.Progress{
		Stage:      domain.StageRenderImages,
		TotalUnits: len(units),
	}); err != nil {
		return fmt.Errorf("record render progress: %w", err)
	}
	images, err := uc.renderImages(ctx, log, job.Token, params, units)
	if err != nil {
		return uc.fail(ctx, log, analysis.ID, err)
	}

	var cases []domain.TestCase
	processed := 0
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return uc.fail(ctx, log, analysis.ID, err)
		}

		unitCases, err := uc.generator.GenerateCases(ctx, ports.GenerationRequest{
			FileKey:         params.FileKey,
			Unit:            unit,
			Images:          images,
			Model:           params.Model,
			ReasoningEffort: params.ReasoningEffort,
			ImagesPerUnit:   params.ImagesPerUnit,
		})
		processed++
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return uc.fail(ctx, log, analysis.ID, err)
			}
			if domain.IsUnitScoped(err) {
				log.Warn("unit_skipped", "unit", unit.Label, "page", unit.PageName, "error", err)
				uc.unitSkipped(params.Level)
				uc.writeProgress(ctx, log, analysis.ID, processed, len(units), len(cases))
				continue
			}
			return uc.fail(ctx, log, analysis.ID, err)
		}

		for _, c := range unitCases {
			cases = append(cases, finalizeCase(c, unit, images, len(cases)+1))
		}
		uc.unitProcessed(params.Level, len(unitCases))
		uc.writeProgress(ctx, log, analysis.ID, processed, len(units), len(cases))
	}

	if err := uc.analyses.UpdateProgress(ctx, analysis.ID, domain.Progress{
		Stage:          domain.StagePersist,
		ProcessedUnits: processed,
		TotalUnits:     len(units),
		TotalCases:     len(cases),
	}); err != nil {
		return fmt.Errorf("record persist progress: %w", err)
	}
	if err := uc.analyses.MarkCompleted(ctx, analysis.ID, cases); err != nil {
		return fmt.Errorf("complete analysis: %w", err)
	}

	log.Info("analysis_completed", "units", len(units), "cases", len(cases))
	return nil
}

// renderImages resolves the image URLs for the frames each unit will show the
// model. Missing renders degrade those frames to text-only prompts.
func (uc *RunAnalysisUseCase) renderImages(
	ctx context.Context,
	log *slog.Logger,
	token string,
	params domain.AnalysisParams,
	units []domain.AnalysisUnit,
) (map[string]string, error) {
	var nodeIDs []string
	seen := make(map[string]struct{})
	for _, unit := range units {
		limit := params.ImagesPerUnit
		if limit <= 0 || limit > len(unit.Frames) {
			limit = len(unit.Frames)
		}
		for _, f := range unit.Frames[:limit] {
			if _, dup := seen[f.NodeID]; dup {
				continue
			}
			seen[f.NodeID] = struct{}{}
			nodeIDs = append(nodeIDs, f.NodeID)
		}
	}

	images, err := uc.renderer.RenderImages(ctx, token, params.FileKey, nodeIDs, params.ImageScale)
	if err != nil {
		if domain.IsKind(err, domain.ErrAuth) {
			return nil, err
		}
		log.Warn("render_degraded_to_text_only", "requested", len(nodeIDs), "error", err)
		uc.renderFailures(len(nodeIDs))
		return map[string]string{}, nil
	}

	if missing := len(nodeIDs) - len(images); missing > 0 {
		log.Warn("render_partial", "requested", len(nodeIDs), "resolved", len(images))
		uc.renderFailures(missing)
	}
	return images, nil
}

// finalizeCase stamps orchestrator-owned identity onto a generated case.
// CaseRef is unique and monotonically increasing within one analysis.
func finalizeCase(c domain.TestCase, unit domain.AnalysisUnit, images map[string]string, index int) domain.TestCase {
	c.CaseRef = fmt.Sprintf("TC-%03d", index)
	c.CaseIndex = index
	c.PageName = unit.PageName

	first := unit.Frames[0]
	if unit.Multi() {
		c.BundleLabel = unit.Label
		c.FrameName = unit.Label
		c.NodeID = first.NodeID
	} else {
		c.FrameName = first.Name
		c.NodeID = first.NodeID
	}
	if c.ImageURL == "" {
		c.ImageURL = images[first.NodeID]
	}

	if c.Evaluation.Status == "" {
		c.Evaluation.Status = domain.EvaluationStatusPending
	}
	return c
}

func (uc *RunAnalysisUseCase) writeProgress(ctx context.Context, log *slog.Logger, analysisID int64, processed, total, cases int) {
	err := uc.analyses.UpdateProgress(ctx, analysisID, domain.Progress{
		Stage:          domain.StageGenerate,
		ProcessedUnits: processed,
		TotalUnits:     total,
		TotalCases:     cases,
	})
	if err != nil {
		log.Warn("progress_write_failed", "error", err)
	}
}

// fail records the terminal error on the analysis. Auth, not-found and
// exhausted-retry failures surface their message to the caller; anything else
// gets a generic message with the detail kept in the logs.
func (uc *RunAnalysisUseCase) fail(ctx context.Context, log *slog.Logger, analysisID int64, cause error) error {
	log.Error("analysis_failed", "error", cause)

	message := "internal error during analysis"
	if domain.IsKind(cause, domain.ErrAuth) ||
		domain.IsKind(cause, domain.ErrInvalidInput) ||
		domain.IsKind(cause, domain.ErrTemporary) {
		message = cause.Error()
	}

	// The terminal status write must survive job cancellation.
	if err := uc.analyses.MarkFailed(context.WithoutCancel(ctx), analysisID, message); err != nil {
		log.Error("mark_failed_write_failed", "error", err)
	}
	return cause
}

func (uc *RunAnalysisUseCase) unitProcessed(level domain.AnalysisLevel, cases int) {
	if uc.observer != nil {
		uc.observer.UnitProcessed(level, cases)
	}
}

func (uc *RunAnalysisUseCase) unitSkipped(level domain.AnalysisLevel) {
	if uc.observer != nil {
		uc.observer.UnitSkipped(level)
	}
}

func (uc *RunAnalysisUseCase) renderFailures(count int) {
	if uc.observer != nil {
		uc.observer.RenderFailures(count)
	}
}
