package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

func newAnalysisRepoWithMock(t *testing.T) (*AnalysisRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &AnalysisRepository{db: db}, mock, func() { _ = db.Close() }
}

func analysisRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "job_id", "file_key", "figma_url", "analysis_level", "model", "images_per_unit",
		"image_scale", "reasoning_effort", "max_frames", "status", "stage", "error_message",
		"processed_units", "total_units", "total_cases", "created_at", "updated_at",
	})
}

func TestCreateAssignsGeneratedID(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	mock.ExpectQuery("INSERT INTO analyses").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	analysis := &domain.Analysis{
		JobID:         "job-1",
		FileKey:       "abc123def456",
		Level:         domain.LevelGroup,
		Model:         "gpt-5",
		ImagesPerUnit: 12,
		ImageScale:    2,
		Status:        domain.StatusQueued,
	}
	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if analysis.ID != 7 {
		t.Fatalf("expected generated id 7, got %d", analysis.ID)
	}
	if analysis.CreatedAt.IsZero() || analysis.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM analyses WHERE id").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99, false)
	if !domain.IsKind(err, domain.ErrAnalysisNotFound) {
		t.Fatalf("expected ErrAnalysisNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByJobIDScansNullableColumns(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM analyses WHERE job_id").
		WithArgs("job-1").
		WillReturnRows(analysisRows().AddRow(
			int64(1), "job-1", "abc123def456", nil, "group", "gpt-5", 12,
			2.0, nil, 0, "running", "generate", nil,
			3, 5, 24, now, now,
		))

	analysis, err := repo.GetByJobID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByJobID() error = %v", err)
	}
	if analysis.Status != domain.StatusRunning || analysis.Stage != "generate" {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	if analysis.FigmaURL != "" || analysis.Error != "" {
		t.Fatalf("null columns should scan to empty strings: %+v", analysis)
	}
	status := analysis.JobStatus()
	if status.ProcessedUnits != 3 || status.TotalUnits != 5 || status.TotalCases != 24 {
		t.Fatalf("unexpected job status: %+v", status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM analyses").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 42)
	if !domain.IsKind(err, domain.ErrAnalysisNotFound) {
		t.Fatalf("expected ErrAnalysisNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkCompletedWritesCasesAndStatusInOneTx(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO test_cases").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO test_cases").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("UPDATE analyses").
		WithArgs(int64(1), string(domain.StatusCompleted), domain.StageCompleted, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cases := []domain.TestCase{
		{CaseRef: "TC-001", CaseIndex: 1, PageName: "Auth", FrameName: "Login", NodeID: "1:1"},
		{CaseRef: "TC-002", CaseIndex: 2, PageName: "Auth", FrameName: "Login", NodeID: "1:1"},
	}
	if err := repo.MarkCompleted(context.Background(), 1, cases); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkCompletedRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO test_cases").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.MarkCompleted(context.Background(), 1, []domain.TestCase{{CaseRef: "TC-001"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListFiltersByFileKey(t *testing.T) {
	repo, mock, done := newAnalysisRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM analyses WHERE file_key").
		WithArgs("abc123def456", 10).
		WillReturnRows(analysisRows().AddRow(
			int64(2), "job-2", "abc123def456", "https://www.figma.com/design/abc123def456/x", "frame", "gpt-5", 12,
			2.0, "medium", 0, "completed", "completed", nil,
			5, 5, 40, now, now,
		))

	list, err := repo.List(context.Background(), 10, "abc123def456")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].JobID != "job-2" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
