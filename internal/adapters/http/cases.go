package httpadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

// evaluationPatchRequest keeps score as raw JSON so an explicit null, which
// clears the stored score, is distinguishable from an absent field.
type evaluationPatchRequest struct {
	Evaluated *bool           `json:"evaluated"`
	Status    *string         `json:"status"`
	Score     json.RawMessage `json:"score"`
	Notes     *string         `json:"notes"`
	Checked   *bool           `json:"checked"`
}

func (rt *Router) patchCase(w http.ResponseWriter, r *http.Request) {
	analysisID, caseID, ok := casePath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid analysis or case id"})
		return
	}

	var req evaluationPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	patch := domain.EvaluationPatch{
		Evaluated: req.Evaluated,
		Status:    req.Status,
		Notes:     req.Notes,
		Checked:   req.Checked,
	}
	if len(req.Score) > 0 {
		patch.ScoreSet = true
		if !bytes.Equal(bytes.TrimSpace(req.Score), []byte("null")) {
			var score float64
			if err := json.Unmarshal(req.Score, &score); err != nil || score < 0 || score > 100 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "score must be a number between 0 and 100"})
				return
			}
			patch.Score = &score
		}
	}
	if patch.Empty() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one evaluation field is required"})
		return
	}

	updated, err := rt.cases.UpdateEvaluation(r.Context(), analysisID, caseID, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) deleteCase(w http.ResponseWriter, r *http.Request) {
	analysisID, caseID, ok := casePath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid analysis or case id"})
		return
	}

	if err := rt.cases.DeleteCase(r.Context(), analysisID, caseID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) exportAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid analysis id"})
		return
	}

	analysis, err := rt.analyses.GetByID(r.Context(), id, true)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordExport("api", err)
		}
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = rt.exporter.WriteWorkbook(analysis, &buf)
	if rt.metrics != nil {
		rt.metrics.RecordExport("api", err)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=analysis_%d_cases.xlsx", analysis.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func casePath(r *http.Request) (analysisID, caseID int64, ok bool) {
	analysisID, aok := pathID(r, "id")
	caseID, cok := pathID(r, "case_id")
	return analysisID, caseID, aok && cok
}
