package domain

import "time"

type AnalysisStatus string

const (
	StatusQueued    AnalysisStatus = "queued"
	StatusRunning   AnalysisStatus = "running"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

// Pipeline stage labels surfaced through the job status endpoint.
const (
	StageFetchDocument = "fetch_document"
	StagePartition     = "partition"
	StageRenderImages  = "render_images"
	StageGenerate      = "generate"
	StagePersist       = "persist"
	StageCompleted     = "completed"
	StageFailed        = "failed"
)

// AnalysisParams are the knobs of one pipeline run.
type AnalysisParams struct {
	FileKey         string        `json:"file_key"`
	FigmaURL        string        `json:"figma_url,omitempty"`
	Level           AnalysisLevel `json:"analysis_level"`
	Model           string        `json:"model"`
	ReasoningEffort string        `json:"reasoning_effort"`
	ImageScale      float64       `json:"image_scale"`
	ImagesPerUnit   int           `json:"images_per_unit"`
	MaxFrames       int           `json:"max_frames,omitempty"`
}

// Analysis is one pipeline run. History is append-only: reruns create a new
// Analysis and never mutate a prior one.
type Analysis struct {
	ID              int64          `json:"analysis_id"`
	JobID           string         `json:"job_id"`
	FileKey         string         `json:"file_key"`
	FigmaURL        string         `json:"figma_url,omitempty"`
	Level           AnalysisLevel  `json:"analysis_level"`
	Model           string         `json:"model"`
	ImagesPerUnit   int            `json:"images_per_unit"`
	ImageScale      float64        `json:"image_scale"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
	MaxFrames       int            `json:"max_frames,omitempty"`
	Status          AnalysisStatus `json:"status"`
	Stage           string         `json:"stage,omitempty"`
	Error           string         `json:"error,omitempty"`
	ProcessedUnits  int            `json:"processed_units"`
	TotalUnits      int            `json:"total_units"`
	TotalCases      int            `json:"total_cases"`
	Cases           []TestCase     `json:"cases,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (a *Analysis) Params() AnalysisParams {
	return AnalysisParams{
		FileKey:         a.FileKey,
		FigmaURL:        a.FigmaURL,
		Level:           a.Level,
		Model:           a.Model,
		ReasoningEffort: a.ReasoningEffort,
		ImageScale:      a.ImageScale,
		ImagesPerUnit:   a.ImagesPerUnit,
		MaxFrames:       a.MaxFrames,
	}
}

// AnalysisJob is the queue payload dispatched to the worker. It carries the
// short-lived design-API credential, which is never persisted.
type AnalysisJob struct {
	JobID      string         `json:"job_id"`
	Token      string         `json:"token"`
	Params     AnalysisParams `json:"params"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// Progress is the per-unit status write performed while a job is running.
type Progress struct {
	Stage          string
	ProcessedUnits int
	TotalUnits     int
	TotalCases     int
}

// JobStatus is the pollable snapshot of an Analysis in progress.
type JobStatus struct {
	JobID          string         `json:"job_id"`
	AnalysisID     int64          `json:"analysis_id"`
	Status         AnalysisStatus `json:"status"`
	Stage          string         `json:"stage,omitempty"`
	ProcessedUnits int            `json:"processed_units"`
	TotalUnits     int            `json:"total_units"`
	TotalCases     int            `json:"total_cases"`
	Error          string         `json:"error,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (a *Analysis) JobStatus() JobStatus {
	return JobStatus{
		JobID:          a.JobID,
		AnalysisID:     a.ID,
		Status:         a.Status,
		Stage:          a.Stage,
		ProcessedUnits: a.ProcessedUnits,
		TotalUnits:     a.TotalUnits,
		TotalCases:     a.TotalCases,
		Error:          a.Error,
		UpdatedAt:      a.UpdatedAt,
	}
}
