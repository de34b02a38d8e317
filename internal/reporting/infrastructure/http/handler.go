package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/reporting/application"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/reporting/domain"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/httpjson"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("reporting-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/reports/most-cancelled-date", h.mostCancelledDate)
	r.Get("/reports/events/{id}/cancellation-rate", h.cancellationRate)
}

func (h *Handler) mostCancelledDate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MostCancelledDate")
	defer span.End()

	dc, err := h.service.MostCancelledDate(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"event_date":         dc.Date.Format(time.DateOnly),
		"cancelled_quantity": dc.CancelledQuantity,
	})
}

func (h *Handler) cancellationRate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancellationRate")
	defer span.End()

	id, err := httpjson.IDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	rate, err := h.service.CancellationRate(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	// the percentage is rendered as a JSON string so no float rounding
	// happens on the way out
	httpjson.Write(w, http.StatusOK, map[string]any{
		"event_id":                     rate.EventID,
		"total":                        rate.TotalOrders,
		"cancellation_rate_percentage": rate.Percentage.StringFixed(2),
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoOrders):
		httpjson.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNoCancellations):
		httpjson.Error(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("report request failed", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}
