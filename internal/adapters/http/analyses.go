package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
	"github.com/ncastellanos/figma-qa/internal/core/ports"
)

const maxRequestBody = 1 << 20

type startAnalysisRequest struct {
	FigmaURL        string  `json:"figma_url"`
	FileKey         string  `json:"file_key"`
	FigmaToken      string  `json:"figma_token"`
	Model           string  `json:"model"`
	ReasoningEffort string  `json:"reasoning_effort"`
	ImageScale      float64 `json:"image_scale"`
	ImagesPerUnit   int     `json:"images_per_unit"`
	AnalysisLevel   string  `json:"analysis_level"`
	MaxFrames       int     `json:"max_frames"`
}

// startedResponse adds the polling URL to the accepted analysis payload.
type startedResponse struct {
	*domain.Analysis
	StatusURL string `json:"status_url"`
}

func started(analysis *domain.Analysis) startedResponse {
	return startedResponse{Analysis: analysis, StatusURL: "/v1/jobs/" + analysis.JobID}
}

type rerunRequest struct {
	FigmaToken      string   `json:"figma_token"`
	AnalysisLevel   *string  `json:"analysis_level"`
	Model           *string  `json:"model"`
	ReasoningEffort *string  `json:"reasoning_effort"`
	ImageScale      *float64 `json:"image_scale"`
	ImagesPerUnit   *int     `json:"images_per_unit"`
	MaxFrames       *int     `json:"max_frames"`
}

func (rt *Router) startAnalysis(w http.ResponseWriter, r *http.Request) {
	var req startAnalysisRequest
	if !decodeBody(w, r, &req) {
		return
	}

	analysis, err := rt.starter.Start(r.Context(), ports.StartAnalysisInput{
		FigmaURL:        req.FigmaURL,
		FileKey:         req.FileKey,
		Token:           requestToken(r, req.FigmaToken),
		Model:           req.Model,
		ReasoningEffort: req.ReasoningEffort,
		ImageScale:      req.ImageScale,
		ImagesPerUnit:   req.ImagesPerUnit,
		Level:           req.AnalysisLevel,
		MaxFrames:       req.MaxFrames,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordJobStarted("api", string(analysis.Level))
	}
	writeJSON(w, http.StatusAccepted, started(analysis))
}

func (rt *Router) rerunAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid analysis id"})
		return
	}

	var req rerunRequest
	if !decodeBody(w, r, &req) {
		return
	}

	analysis, err := rt.starter.Rerun(r.Context(), id, requestToken(r, req.FigmaToken), ports.RerunOverrides{
		Level:           req.AnalysisLevel,
		Model:           req.Model,
		ReasoningEffort: req.ReasoningEffort,
		ImageScale:      req.ImageScale,
		ImagesPerUnit:   req.ImagesPerUnit,
		MaxFrames:       req.MaxFrames,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordJobStarted("api", string(analysis.Level))
	}
	writeJSON(w, http.StatusAccepted, started(analysis))
}

func (rt *Router) listAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	analyses, err := rt.analyses.List(r.Context(), limit, r.URL.Query().Get("file_key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if analyses == nil {
		analyses = []domain.Analysis{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid analysis id"})
		return
	}

	includeCases := false
	if raw := r.URL.Query().Get("include_cases"); raw != "" {
		includeCases, _ = strconv.ParseBool(raw)
	}

	analysis, err := rt.analyses.GetByID(r.Context(), id, includeCases)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) deleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid analysis id"})
		return
	}

	if err := rt.analyses.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	analysis, err := rt.analyses.GetByJobID(r.Context(), jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.JobStatus())
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return false
	}
	return true
}

// requestToken prefers the Authorization bearer token over the body field so
// callers can keep credentials out of request payloads.
func requestToken(r *http.Request, bodyToken string) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return bodyToken
}
