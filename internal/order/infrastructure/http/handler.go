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

	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/application"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/httpjson"
)

type Handler struct {
	log        *slog.Logger
	service    *application.Service
	tracer     trace.Tracer
	middleware []func(http.Handler) http.Handler
}

// NewHandler builds the order routes. middleware wraps only the order
// creation route, where replays must not create duplicate orders.
func NewHandler(log *slog.Logger, service *application.Service, middleware ...func(http.Handler) http.Handler) *Handler {
	return &Handler{
		log:        log,
		service:    service,
		tracer:     otel.Tracer("order-http"),
		middleware: middleware,
	}
}

type placeOrderReq struct {
	UserID       string `json:"user_id" validate:"required"`
	TicketTypeID int64  `json:"ticket_type_id" validate:"required,gt=0"`
	Quantity     int    `json:"quantity" validate:"required,min=1"`
}

type orderResp struct {
	ID            int64      `json:"id"`
	UserID        string     `json:"user_id"`
	TicketTypeID  int64      `json:"ticket_type_id"`
	Quantity      int        `json:"quantity"`
	State         string     `json:"state"`
	StateChangeAt *time.Time `json:"state_change_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type bookResp struct {
	Fulfilled bool      `json:"fulfilled"`
	Outcome   string    `json:"outcome"`
	Order     orderResp `json:"order"`
}

type cancelResp struct {
	Cancelled         bool      `json:"cancelled"`
	Outcome           string    `json:"outcome"`
	RetryAfterSeconds int64     `json:"retry_after_seconds,omitempty"`
	Order             orderResp `json:"order"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.With(h.middleware...).Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Delete("/orders/{id}", h.deleteOrder)
	r.Get("/orders/{id}/tickets", h.orderTickets)
	r.Post("/orders/{id}/book", h.book)
	r.Post("/orders/{id}/cancel", h.cancel)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	var req placeOrderReq
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.service.PlaceOrder(ctx, req.UserID, req.TicketTypeID, req.Quantity)
	if err != nil {
		h.fail(w, err)
		return
	}
	span.SetAttributes(attribute.Int64("order_id", o.ID))
	httpjson.Write(w, http.StatusCreated, toOrderResp(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id, err := httpjson.IDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := h.service.Get(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toOrderResp(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteOrder")
	defer span.End()

	id, err := httpjson.IDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.service.DeleteOrder(ctx, id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) orderTickets(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "OrderTickets")
	defer span.End()

	id, err := httpjson.IDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	ids, err := h.service.Tickets(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"order_id": id, "ticket_ids": ids})
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "BookOrder")
	defer span.End()

	id, err := httpjson.IDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.Int64("order_id", id))

	res, err := h.service.Book(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	httpjson.Write(w, http.StatusOK, bookResp{
		Fulfilled: res.Fulfilled,
		Outcome:   string(res.Outcome),
		Order:     toOrderResp(res.Order),
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	id, err := httpjson.IDParam(r, "id")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.Int64("order_id", id))

	res, err := h.service.Cancel(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	resp := cancelResp{
		Cancelled: res.Cancelled,
		Outcome:   string(res.Outcome),
		Order:     toOrderResp(res.Order),
	}
	if res.RetryAfter > 0 {
		resp.RetryAfterSeconds = int64(res.RetryAfter.Round(time.Second) / time.Second)
	}
	httpjson.Write(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrUnknownTicketType):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyFulfilled),
		errors.Is(err, domain.ErrOrderCancelled),
		errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrInvalidTransition):
		httpjson.Error(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("order request failed", "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func toOrderResp(o domain.Order) orderResp {
	return orderResp{
		ID:            o.ID,
		UserID:        o.UserID,
		TicketTypeID:  o.TicketTypeID,
		Quantity:      o.Quantity,
		State:         string(o.State),
		StateChangeAt: o.StateChangeAt,
		CreatedAt:     o.CreatedAt,
	}
}
