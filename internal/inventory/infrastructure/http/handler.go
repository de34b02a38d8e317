package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/application"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/domain"
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
		tracer:  otel.Tracer("inventory-http"),
	}
}

type createEventReq struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Date        string `json:"date" validate:"required"`
}

type eventResp struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

type createTicketTypeReq struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type ticketTypeResp struct {
	ID        int64  `json:"id"`
	EventID   int64  `json:"event_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Available *int   `json:"available,omitempty"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/events", h.createEvent)
	r.Post("/events/{id}/ticket-types", h.createTicketType)
	r.Get("/ticket-types/{id}", h.getTicketType)
	r.Get("/ticket-types/{id}/availability", h.availability)
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateEvent")
	defer span.End()

	var req createEventReq
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	ev, err := h.service.CreateEvent(ctx, req.Name, req.Description, date)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, eventResp{
		ID:          ev.ID,
		Name:        ev.Name,
		Description: ev.Description,
		Date:        ev.Date.Format(time.DateOnly),
	})
}

func (h *Handler) createTicketType(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateTicketType")
	defer span.End()

	eventID, err := httpjson.IDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var req createTicketTypeReq
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	tt, err := h.service.CreateTicketType(ctx, eventID, req.Name, req.Quantity)
	if err != nil {
		h.fail(w, err)
		return
	}
	span.SetAttributes(attribute.Int64("ticket_type_id", tt.ID))
	httpjson.Write(w, http.StatusCreated, toTicketTypeResp(tt, nil))
}

func (h *Handler) getTicketType(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetTicketType")
	defer span.End()

	id, err := httpjson.IDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	tt, err := h.service.GetTicketType(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	n, err := h.service.AvailableCount(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toTicketTypeResp(tt, &n))
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AvailableCount")
	defer span.End()

	id, err := httpjson.IDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.service.AvailableCount(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"ticket_type_id": id, "available": n})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidName):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("inventory request failed", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func toTicketTypeResp(tt domain.TicketType, available *int) ticketTypeResp {
	return ticketTypeResp{
		ID:        tt.ID,
		EventID:   tt.EventID,
		Name:      tt.Name,
		Quantity:  tt.Quantity,
		Available: available,
	}
}
