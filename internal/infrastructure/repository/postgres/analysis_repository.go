package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *AnalysisRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS analyses (
	id BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL UNIQUE,
	file_key TEXT NOT NULL,
	figma_url TEXT,
	analysis_level TEXT NOT NULL,
	model TEXT NOT NULL,
	images_per_unit INTEGER NOT NULL DEFAULT 12,
	image_scale DOUBLE PRECISION NOT NULL DEFAULT 2,
	reasoning_effort TEXT,
	max_frames INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	stage TEXT,
	error_message TEXT,
	processed_units INTEGER NOT NULL DEFAULT 0,
	total_units INTEGER NOT NULL DEFAULT 0,
	total_cases INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS test_cases (
	id BIGSERIAL PRIMARY KEY,
	analysis_id BIGINT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	case_ref TEXT NOT NULL,
	case_index INTEGER NOT NULL,
	payload JSONB NOT NULL,
	page_name TEXT,
	frame_name TEXT,
	node_id TEXT,
	bundle_label TEXT,
	image_url TEXT,
	evaluated BOOLEAN NOT NULL DEFAULT FALSE,
	eval_status TEXT NOT NULL DEFAULT 'pending',
	eval_score DOUBLE PRECISION,
	eval_notes TEXT,
	eval_checked BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_file_key ON analyses(file_key);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_test_cases_analysis ON test_cases(analysis_id, case_index);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const analysisColumns = `id, job_id, file_key, figma_url, analysis_level, model, images_per_unit, image_scale,
reasoning_effort, max_frames, status, stage, error_message, processed_units, total_units, total_cases,
created_at, updated_at`

func (r *AnalysisRepository) Create(ctx context.Context, analysis *domain.Analysis) error {
	now := time.Now().UTC()
	analysis.CreatedAt = now
	analysis.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, `
INSERT INTO analyses (
	job_id, file_key, figma_url, analysis_level, model, images_per_unit, image_scale,
	reasoning_effort, max_frames, status, stage, processed_units, total_units, total_cases,
	created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id
`,
		analysis.JobID, analysis.FileKey, nullString(analysis.FigmaURL), string(analysis.Level),
		analysis.Model, analysis.ImagesPerUnit, analysis.ImageScale, nullString(analysis.ReasoningEffort),
		analysis.MaxFrames, string(analysis.Status), nullString(analysis.Stage),
		analysis.ProcessedUnits, analysis.TotalUnits, analysis.TotalCases,
		analysis.CreatedAt, analysis.UpdatedAt,
	).Scan(&analysis.ID)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id int64, includeCases bool) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)
	analysis, err := scanAnalysis(row)
	if err != nil {
		return nil, err
	}
	if includeCases {
		cases, err := r.loadCases(ctx, analysis.ID)
		if err != nil {
			return nil, err
		}
		analysis.Cases = cases
	}
	return analysis, nil
}

func (r *AnalysisRepository) GetByJobID(ctx context.Context, jobID string) (*domain.Analysis, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE job_id = $1`, jobID)
	return scanAnalysis(row)
}

func (r *AnalysisRepository) List(ctx context.Context, limit int, fileKey string) ([]domain.Analysis, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if fileKey != "" {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+analysisColumns+` FROM analyses WHERE file_key = $1 ORDER BY created_at DESC LIMIT $2
`, fileKey, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC LIMIT $1
`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []domain.Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

func (r *AnalysisRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete analysis rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrAnalysisNotFound
	}
	return nil
}

func (r *AnalysisRepository) MarkRunning(ctx context.Context, id int64, stage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE analyses SET status = $2, stage = $3, updated_at = $4 WHERE id = $1
`, id, string(domain.StatusRunning), stage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark analysis running: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) UpdateProgress(ctx context.Context, id int64, progress domain.Progress) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE analyses
SET stage = $2, processed_units = $3, total_units = $4, total_cases = $5, updated_at = $6
WHERE id = $1
`, id, progress.Stage, progress.ProcessedUnits, progress.TotalUnits, progress.TotalCases, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update analysis progress: %w", err)
	}
	return nil
}

// MarkCompleted persists the generated cases and flips the analysis to
// completed in one transaction, so a status poll never observes a completed
// analysis with half its cases missing.
func (r *AnalysisRepository) MarkCompleted(ctx context.Context, id int64, cases []domain.TestCase) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin completion tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, c := range cases {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal case payload: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO test_cases (
	analysis_id, case_ref, case_index, payload, page_name, frame_name, node_id,
	bundle_label, image_url, evaluated, eval_status, eval_score, eval_notes, eval_checked, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
			id, c.CaseRef, c.CaseIndex, payload, c.PageName, c.FrameName, c.NodeID,
			nullString(c.BundleLabel), nullString(c.ImageURL),
			c.Evaluation.Evaluated, evalStatus(c.Evaluation.Status), c.Evaluation.Score,
			nullString(c.Evaluation.Notes), c.Evaluation.Checked, now,
		); err != nil {
			return fmt.Errorf("insert case: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE analyses
SET status = $2, stage = $3, total_cases = $4, error_message = NULL, updated_at = $5
WHERE id = $1
`, id, string(domain.StatusCompleted), domain.StageCompleted, len(cases), now); err != nil {
		return fmt.Errorf("mark analysis completed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit completion tx: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) MarkFailed(ctx context.Context, id int64, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE analyses SET status = $2, stage = $3, error_message = $4, updated_at = $5 WHERE id = $1
`, id, string(domain.StatusFailed), domain.StageFailed, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark analysis failed: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) loadCases(ctx context.Context, analysisID int64) ([]domain.TestCase, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+caseColumns+`
FROM test_cases
WHERE analysis_id = $1
ORDER BY case_index ASC
`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var out []domain.TestCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var (
		a               domain.Analysis
		figmaURL        sql.NullString
		level           string
		reasoningEffort sql.NullString
		status          string
		stage           sql.NullString
		errMessage      sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.JobID, &a.FileKey, &figmaURL, &level, &a.Model, &a.ImagesPerUnit, &a.ImageScale,
		&reasoningEffort, &a.MaxFrames, &status, &stage, &errMessage,
		&a.ProcessedUnits, &a.TotalUnits, &a.TotalCases, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	a.FigmaURL = figmaURL.String
	a.Level = domain.AnalysisLevel(level)
	a.ReasoningEffort = reasoningEffort.String
	a.Status = domain.AnalysisStatus(status)
	a.Stage = stage.String
	a.Error = errMessage.String
	return &a, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func evalStatus(s string) string {
	if s == "" {
		return domain.EvaluationStatusPending
	}
	return s
}
