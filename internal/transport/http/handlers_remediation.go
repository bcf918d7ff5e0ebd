package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"doctrine/internal/audit"
	"doctrine/internal/platform/metrics"
	"doctrine/internal/remediation"
	"doctrine/pkg/pipeerrors"
)

// RemediationHandler exposes the remediation sweep and per-failure processing,
// plus the audit query surface.
type RemediationHandler struct {
	router  *remediation.Router
	audit   *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewRemediationHandler(router *remediation.Router, auditPub *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *RemediationHandler {
	return &RemediationHandler{router: router, audit: auditPub, metrics: m, logger: logger}
}

func (h *RemediationHandler) Register(r chi.Router) {
	r.Route("/remediation", func(r chi.Router) {
		r.Post("/sweep", h.handleSweep)
		r.Post("/failures/{id}/process", h.handleProcess)
	})
	r.Get("/audit/{entityID}", h.handleAuditList)
}

func (h *RemediationHandler) handleSweep(w http.ResponseWriter, r *http.Request) {
	fixed, escalated, err := h.router.Sweep(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.FailuresFixed.WithLabelValues("fixed").Add(float64(fixed))
		h.metrics.FailuresFixed.WithLabelValues("escalated").Add(float64(escalated))
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"fixed":     fixed,
		"escalated": escalated,
	})
}

func (h *RemediationHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, pipeerrors.New(pipeerrors.CodeBadRequest, "invalid failure id"))
		return
	}
	failure, err := h.router.Process(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, failure)
}

func (h *RemediationHandler) handleAuditList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.List(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
