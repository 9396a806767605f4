package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ncastellanos/figma-qa/internal/config"
	"github.com/ncastellanos/figma-qa/internal/core/domain"
	"github.com/ncastellanos/figma-qa/internal/core/ports"
)

type starterFake struct {
	err       error
	lastInput ports.StartAnalysisInput
	lastToken string
}

func (f *starterFake) Start(_ context.Context, in ports.StartAnalysisInput) (*domain.Analysis, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Analysis{ID: 7, JobID: "job-7", FileKey: in.FileKey, Level: domain.LevelGroup, Status: domain.StatusQueued}, nil
}

func (f *starterFake) Rerun(_ context.Context, analysisID int64, token string, _ ports.RerunOverrides) (*domain.Analysis, error) {
	f.lastToken = token
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Analysis{ID: analysisID + 1, JobID: "job-rerun", Level: domain.LevelFrame, Status: domain.StatusQueued}, nil
}

type analysesFake struct {
	analysis *domain.Analysis
	err      error
	deleted  int64
}

func (f *analysesFake) Create(context.Context, *domain.Analysis) error { return nil }

func (f *analysesFake) GetByID(_ context.Context, id int64, _ bool) (*domain.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *analysesFake) GetByJobID(context.Context, string) (*domain.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *analysesFake) List(context.Context, int, string) ([]domain.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.analysis == nil {
		return nil, nil
	}
	return []domain.Analysis{*f.analysis}, nil
}

func (f *analysesFake) Delete(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = id
	return nil
}

func (f *analysesFake) MarkRunning(context.Context, int64, string) error { return nil }
func (f *analysesFake) UpdateProgress(context.Context, int64, domain.Progress) error {
	return nil
}
func (f *analysesFake) MarkCompleted(context.Context, int64, []domain.TestCase) error { return nil }
func (f *analysesFake) MarkFailed(context.Context, int64, string) error               { return nil }

type casesFake struct {
	err       error
	lastPatch domain.EvaluationPatch
}

func (f *casesFake) GetCase(context.Context, int64, int64) (*domain.TestCase, error) {
	return &domain.TestCase{CaseRef: "TC-001"}, f.err
}

func (f *casesFake) UpdateEvaluation(_ context.Context, _, _ int64, patch domain.EvaluationPatch) (*domain.TestCase, error) {
	f.lastPatch = patch
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TestCase{CaseRef: "TC-001", Evaluation: patch.Apply(domain.Evaluation{Status: "pending"})}, nil
}

func (f *casesFake) DeleteCase(context.Context, int64, int64) error { return f.err }

type exporterFake struct {
	err error
}

func (f exporterFake) WriteWorkbook(_ *domain.Analysis, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := w.Write([]byte("PK\x03\x04workbook"))
	return err
}

type routerFixture struct {
	starter  *starterFake
	analyses *analysesFake
	cases    *casesFake
	handler  http.Handler
}

func newRouterFixture(cfg config.Config) *routerFixture {
	starter := &starterFake{}
	analyses := &analysesFake{analysis: &domain.Analysis{
		ID: 3, JobID: "job-3", FileKey: "abc123def456",
		Level: domain.LevelGroup, Status: domain.StatusRunning, Stage: domain.StageGenerate,
		ProcessedUnits: 2, TotalUnits: 5,
	}}
	cases := &casesFake{}
	handler := NewRouter(cfg, starter, analyses, cases, exporterFake{}, nil).Handler()
	return &routerFixture{starter: starter, analyses: analyses, cases: cases, handler: handler}
}

func do(t *testing.T, handler http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthz(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodGet, "/healthz", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestStartAnalysisAccepted(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodPost, "/v1/analyses", map[string]any{
		"file_key":    "abc123def456",
		"figma_token": "figd_body",
		"model":       "gpt-4o",
	}, nil)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if fx.starter.lastInput.Token != "figd_body" || fx.starter.lastInput.Model != "gpt-4o" {
		t.Errorf("input not forwarded: %+v", fx.starter.lastInput)
	}

	var resp struct {
		JobID     string `json:"job_id"`
		StatusURL string `json:"status_url"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "job-7" || resp.StatusURL != "/v1/jobs/job-7" {
		t.Errorf("unexpected accepted payload: %+v", resp)
	}
}

func TestStartAnalysisPrefersBearerToken(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodPost, "/v1/analyses", map[string]any{
		"file_key":    "abc123def456",
		"figma_token": "figd_body",
	}, map[string]string{"Authorization": "Bearer figd_header"})

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if fx.starter.lastInput.Token != "figd_header" {
		t.Errorf("token = %q, want bearer header value", fx.starter.lastInput.Token)
	}
}

func TestStartAnalysisInvalidJSON(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", bytes.NewReader([]byte("{not json")))
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestStartAnalysisMapsDomainErrors(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	fx.starter.err = domain.WrapError(domain.ErrInvalidInput, "start", errors.New("figma token is required"))

	res := do(t, fx.handler, http.MethodPost, "/v1/analyses", map[string]any{"file_key": "abc123def456"}, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetJobStatusSnapshot(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodGet, "/v1/jobs/job-3", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var status domain.JobStatus
	if err := json.Unmarshal(res.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.JobID != "job-3" || status.Stage != domain.StageGenerate || status.TotalUnits != 5 {
		t.Errorf("unexpected snapshot: %+v", status)
	}
}

func TestGetJobStatusNotFound(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	fx.analyses.err = domain.ErrAnalysisNotFound

	res := do(t, fx.handler, http.MethodGet, "/v1/jobs/missing", nil, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetAnalysisRejectsBadID(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodGet, "/v1/analyses/abc", nil, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestDeleteAnalysisNoContent(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodDelete, "/v1/analyses/3", nil, nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if fx.analyses.deleted != 3 {
		t.Errorf("deleted id = %d", fx.analyses.deleted)
	}
}

func TestRerunForwardsToken(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodPost, "/v1/analyses/3/rerun", map[string]any{
		"figma_token":    "figd_secret",
		"analysis_level": "frame",
	}, nil)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if fx.starter.lastToken != "figd_secret" {
		t.Errorf("token = %q", fx.starter.lastToken)
	}
}

func TestPatchCaseAppliesEvaluation(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodPatch, "/v1/analyses/3/cases/11", map[string]any{
		"evaluated": true,
		"status":    "passed",
		"score":     92.5,
	}, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	patch := fx.cases.lastPatch
	if patch.Evaluated == nil || !*patch.Evaluated || patch.Status == nil || *patch.Status != "passed" {
		t.Errorf("patch fields not forwarded: %+v", patch)
	}
	if !patch.ScoreSet || patch.Score == nil || *patch.Score != 92.5 {
		t.Errorf("score not forwarded: %+v", patch)
	}
}

func TestPatchCaseNullScoreClears(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodPatch, "/v1/analyses/3/cases/11", map[string]any{
		"score": nil,
	}, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	patch := fx.cases.lastPatch
	if !patch.ScoreSet || patch.Score != nil {
		t.Errorf("null score must set ScoreSet with nil score: %+v", patch)
	}
}

func TestPatchCaseRejectsScoreOutOfRange(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodPatch, "/v1/analyses/3/cases/11", map[string]any{
		"score": 150,
	}, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestPatchCaseRejectsEmptyPatch(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodPatch, "/v1/analyses/3/cases/11", map[string]any{}, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestDeleteCaseNotFound(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	fx.cases.err = domain.ErrCaseNotFound

	res := do(t, fx.handler, http.MethodDelete, "/v1/analyses/3/cases/11", nil, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestExportServesWorkbookAttachment(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodGet, "/v1/analyses/3/export", nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type = %q", ct)
	}
	if cd := res.Header().Get("Content-Disposition"); cd != "attachment; filename=analysis_3_cases.xlsx" {
		t.Errorf("content disposition = %q", cd)
	}
	if res.Body.Len() == 0 {
		t.Error("empty export body")
	}
}

func TestListAnalysesRejectsBadLimit(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	res := do(t, fx.handler, http.MethodGet, "/v1/analyses?limit=-1", nil, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestInternalErrorsHideDetail(t *testing.T) {
	fx := newRouterFixture(config.Config{})
	fx.analyses.err = errors.New("pq: relation does not exist")

	res := do(t, fx.handler, http.MethodGet, "/v1/analyses/3", nil, nil)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "internal server error" {
		t.Errorf("internal detail leaked: %q", resp["error"])
	}
}
