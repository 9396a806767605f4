package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

type CaseRepository struct {
	db *sql.DB
}

func NewCaseRepository(db *sql.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

const caseColumns = `id, case_ref, case_index, payload, page_name, frame_name, node_id,
bundle_label, image_url, evaluated, eval_status, eval_score, eval_notes, eval_checked`

func (r *CaseRepository) GetCase(ctx context.Context, analysisID, caseID int64) (*domain.TestCase, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+caseColumns+`
FROM test_cases
WHERE id = $1 AND analysis_id = $2
`, caseID, analysisID)
	return scanCase(row)
}

// UpdateEvaluation applies a reviewer patch on top of the stored evaluation
// and returns the updated case. Reads and writes run in one transaction so
// two concurrent patches cannot interleave.
func (r *CaseRepository) UpdateEvaluation(ctx context.Context, analysisID, caseID int64, patch domain.EvaluationPatch) (*domain.TestCase, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin evaluation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
SELECT `+caseColumns+`
FROM test_cases
WHERE id = $1 AND analysis_id = $2
FOR UPDATE
`, caseID, analysisID)
	current, err := scanCase(row)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(current.Evaluation)
	if _, err := tx.ExecContext(ctx, `
UPDATE test_cases
SET evaluated = $3, eval_status = $4, eval_score = $5, eval_notes = $6, eval_checked = $7
WHERE id = $1 AND analysis_id = $2
`, caseID, analysisID, updated.Evaluated, evalStatus(updated.Status), updated.Score,
		nullString(updated.Notes), updated.Checked); err != nil {
		return nil, fmt.Errorf("update case evaluation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE analyses SET updated_at = $2 WHERE id = $1
`, analysisID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("touch analysis: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit evaluation tx: %w", err)
	}

	current.Evaluation = updated
	return current, nil
}

func (r *CaseRepository) DeleteCase(ctx context.Context, analysisID, caseID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
DELETE FROM test_cases WHERE id = $1 AND analysis_id = $2
`, caseID, analysisID)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete case rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrCaseNotFound
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE analyses SET total_cases = total_cases - 1, updated_at = $2 WHERE id = $1
`, analysisID, time.Now().UTC()); err != nil {
		return fmt.Errorf("decrement case count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

func scanCase(row rowScanner) (*domain.TestCase, error) {
	var (
		payload     []byte
		bundleLabel sql.NullString
		imageURL    sql.NullString
		evalScore   sql.NullFloat64
		evalNotes   sql.NullString
		id          int64
		caseRef     string
		caseIndex   int
		pageName    sql.NullString
		frameName   sql.NullString
		nodeID      sql.NullString
		evaluated   bool
		status      string
		checked     bool
	)

	err := row.Scan(
		&id, &caseRef, &caseIndex, &payload, &pageName, &frameName, &nodeID,
		&bundleLabel, &imageURL, &evaluated, &status, &evalScore, &evalNotes, &checked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("scan case: %w", err)
	}

	var c domain.TestCase
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("unmarshal case payload: %w", err)
	}

	// Columns win over the stored payload snapshot.
	c.ID = id
	c.CaseRef = caseRef
	c.CaseIndex = caseIndex
	c.PageName = pageName.String
	c.FrameName = frameName.String
	c.NodeID = nodeID.String
	c.BundleLabel = bundleLabel.String
	c.ImageURL = imageURL.String
	c.Evaluation = domain.Evaluation{
		Evaluated: evaluated,
		Status:    status,
		Notes:     evalNotes.String,
		Checked:   checked,
	}
	if evalScore.Valid {
		score := evalScore.Float64
		c.Evaluation.Score = &score
	}
	return &c, nil
}
