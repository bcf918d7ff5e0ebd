package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"doctrine/internal/master"
	"doctrine/internal/platform/metrics"
	"doctrine/internal/promotion"
	"doctrine/pkg/entity"
	"doctrine/pkg/pipeerrors"
)

// PromotionHandler exposes promotion and the resulting master records.
type PromotionHandler struct {
	service *promotion.Service
	masters master.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewPromotionHandler(service *promotion.Service, masters master.Store, m *metrics.Metrics, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{service: service, masters: masters, metrics: m, logger: logger}
}

func (h *PromotionHandler) Register(r chi.Router) {
	r.Post("/promotion/{recordID}", h.handlePromote)
	r.Route("/master", func(r chi.Router) {
		r.Get("/{entityID}", h.handleGetMaster)
		r.Get("/{entityID}/slots", h.handleListSlots)
	})
}

func (h *PromotionHandler) handlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, pipeerrors.New(pipeerrors.CodeBadRequest, "invalid record id"))
		return
	}
	record, err := h.service.Promote(ctx, recordID)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordsPromoted.Inc()
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *PromotionHandler) handleGetMaster(w http.ResponseWriter, r *http.Request) {
	id, err := entity.Parse(chi.URLParam(r, "entityID"), "")
	if err != nil {
		writeError(w, err)
		return
	}
	record, err := h.masters.GetByEntityID(r.Context(), string(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *PromotionHandler) handleListSlots(w http.ResponseWriter, r *http.Request) {
	id, err := entity.Parse(chi.URLParam(r, "entityID"), entity.KindCompany)
	if err != nil {
		writeError(w, err)
		return
	}
	slots, err := h.masters.ListSlots(r.Context(), string(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}
