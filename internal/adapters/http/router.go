package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ncastellanos/figma-qa/internal/config"
	"github.com/ncastellanos/figma-qa/internal/core/ports"
	"github.com/ncastellanos/figma-qa/internal/observability/metrics"
)

const backpressureWait = 100 * time.Millisecond

type Router struct {
	cfg      config.Config
	starter  ports.AnalysisStarter
	analyses ports.AnalysisRepository
	cases    ports.CaseRepository
	exporter ports.Exporter
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	starter ports.AnalysisStarter,
	analyses ports.AnalysisRepository,
	cases ports.CaseRepository,
	exporter ports.Exporter,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:      cfg,
		starter:  starter,
		analyses: analyses,
		cases:    cases,
		exporter: exporter,
		metrics:  serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/analyses", rt.startAnalysis)
	mux.HandleFunc("GET /v1/analyses", rt.listAnalyses)
	mux.HandleFunc("GET /v1/analyses/{id}", rt.getAnalysis)
	mux.HandleFunc("DELETE /v1/analyses/{id}", rt.deleteAnalysis)
	mux.HandleFunc("POST /v1/analyses/{id}/rerun", rt.rerunAnalysis)
	mux.HandleFunc("GET /v1/analyses/{id}/export", rt.exportAnalysis)
	mux.HandleFunc("PATCH /v1/analyses/{id}/cases/{case_id}", rt.patchCase)
	mux.HandleFunc("DELETE /v1/analyses/{id}/cases/{case_id}", rt.deleteCase)
	mux.HandleFunc("GET /v1/jobs/{job_id}", rt.getJobStatus)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status >= 500 {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}
