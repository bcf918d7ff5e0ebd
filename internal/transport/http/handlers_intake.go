package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"doctrine/internal/intake"
	"doctrine/internal/platform/metrics"
	"doctrine/internal/validation"
	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

// IntakeHandler exposes the intake feed boundary and validation operations.
type IntakeHandler struct {
	store   intake.Store
	engine  *validation.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewIntakeHandler(store intake.Store, engine *validation.Engine, m *metrics.Metrics, logger *slog.Logger) *IntakeHandler {
	return &IntakeHandler{store: store, engine: engine, metrics: m, logger: logger}
}

func (h *IntakeHandler) Register(r chi.Router) {
	r.Route("/intake", func(r chi.Router) {
		r.Post("/records", h.handleCreate)
		r.Get("/records/{id}", h.handleGet)
		r.Get("/records/{id}/failures", h.handleListFailures)
		r.Post("/records/{id}/validate", h.handleValidate)
		r.Post("/validate", h.handleValidatePending)
	})
}

type createRecordRequest struct {
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
}

func (h *IntakeHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	kind := entity.Kind(req.Kind)
	if kind != entity.KindCompany && kind != entity.KindPerson {
		writeError(w, pipeerrors.Newf(pipeerrors.CodeBadRequest, "unknown record kind %q", req.Kind))
		return
	}

	record := &intake.Record{Kind: kind, Fields: req.Fields}
	if err := h.store.CreateRecord(ctx, record); err != nil {
		writeError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "intake record created", "record_id", record.ID, "kind", kind)
	writeJSON(w, http.StatusCreated, record)
}

func (h *IntakeHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, pipeerrors.New(pipeerrors.CodeBadRequest, "invalid record id"))
		return
	}
	record, err := h.store.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *IntakeHandler) handleListFailures(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, pipeerrors.New(pipeerrors.CodeBadRequest, "invalid record id"))
		return
	}
	failures, err := h.store.ListFailuresByRecord(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": failures})
}

func (h *IntakeHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, pipeerrors.New(pipeerrors.CodeBadRequest, "invalid record id"))
		return
	}
	record, fieldErrs, err := h.engine.ValidateRecord(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordsValidated.WithLabelValues(string(record.Status)).Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"record": record,
		"errors": fieldErrs,
	})
}

func (h *IntakeHandler) handleValidatePending(w http.ResponseWriter, r *http.Request) {
	validated, failed, err := h.engine.ValidatePending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordsValidated.WithLabelValues(string(intake.StatusValidated)).Add(float64(validated))
		h.metrics.RecordsValidated.WithLabelValues(string(intake.StatusFailed)).Add(float64(failed))
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"validated": validated,
		"failed":    failed,
	})
}
