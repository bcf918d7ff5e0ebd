package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"doctrine/internal/intelligence"
	"doctrine/internal/platform/metrics"
	"doctrine/internal/scheduler"
	"doctrine/pkg/entity"
)

// IntelligenceHandler exposes change detection: on-demand per entity and the
// scheduled refresh's manual trigger.
type IntelligenceHandler struct {
	detector  *intelligence.Detector
	events    intelligence.EventStore
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewIntelligenceHandler(detector *intelligence.Detector, events intelligence.EventStore, sched *scheduler.Scheduler, m *metrics.Metrics, logger *slog.Logger) *IntelligenceHandler {
	return &IntelligenceHandler{detector: detector, events: events, scheduler: sched, metrics: m, logger: logger}
}

func (h *IntelligenceHandler) Register(r chi.Router) {
	r.Route("/intelligence", func(r chi.Router) {
		r.Post("/{entityID}/detect", h.handleDetect)
		r.Get("/{entityID}/events", h.handleListEvents)
		r.Post("/refresh", h.handleRefresh)
	})
}

type detectRequest struct {
	Snapshot map[string]string `json:"snapshot"`
}

func (h *IntelligenceHandler) handleDetect(w http.ResponseWriter, r *http.Request) {
	id, err := entity.Parse(chi.URLParam(r, "entityID"), "")
	if err != nil {
		writeError(w, err)
		return
	}
	var req detectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	events, err := h.detector.DetectChanges(r.Context(), string(id), req.Snapshot)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		for _, event := range events {
			h.metrics.SignalsRecorded.WithLabelValues(string(event.ChangeType)).Inc()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *IntelligenceHandler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := entity.Parse(chi.URLParam(r, "entityID"), "")
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := h.events.ListByEntity(r.Context(), string(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *IntelligenceHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	recorded, err := h.scheduler.RunRefresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"events_recorded": recorded})
}
