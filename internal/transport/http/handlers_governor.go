package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"doctrine/internal/budget"
	"doctrine/pkg/pipeerrors"
)

// GovernorHandler is the budget governor's admin surface.
type GovernorHandler struct {
	governor *budget.Governor
	logger   *slog.Logger
}

func NewGovernorHandler(governor *budget.Governor, logger *slog.Logger) *GovernorHandler {
	return &GovernorHandler{governor: governor, logger: logger}
}

func (h *GovernorHandler) Register(r chi.Router) {
	r.Route("/governor", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/ledger", h.handleLedger)
		r.Post("/reconcile", h.handleReconcile)
		r.Post("/resume", h.handleResume)
	})
}

func (h *GovernorHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.governor.State(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

func (h *GovernorHandler) handleLedger(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.governor.Ledger(r.Context(), period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type reconcileRequest struct {
	Period string `json:"period"`
}

func (h *GovernorHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	period, err := parsePeriod(req.Period)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := h.governor.Reconcile(r.Context(), period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

type resumeRequest struct {
	ResumedBy string `json:"resumed_by"`
}

func (h *GovernorHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.governor.Resume(r.Context(), req.ResumedBy); err != nil {
		writeError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "governor resumed via admin api", "resumed_by", req.ResumedBy)
	writeJSON(w, http.StatusOK, map[string]string{"state": string(budget.StateActive)})
}

func parsePeriod(raw string) (budget.Period, error) {
	switch budget.Period(raw) {
	case budget.PeriodDay, "":
		return budget.PeriodDay, nil
	case budget.PeriodMonth:
		return budget.PeriodMonth, nil
	default:
		return "", pipeerrors.Newf(pipeerrors.CodeBadRequest, "unknown period %q", raw)
	}
}
