package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/outbox"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/tracing"
)

const aggregateType = "order"

type Service struct {
	log  *slog.Logger
	repo OrderRepository
	now  func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, for tests that need to move past the grace
// period.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(log *slog.Logger, repo OrderRepository, opts ...Option) *Service {
	s := &Service{log: log, repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) PlaceOrder(ctx context.Context, userID string, ticketTypeID int64, quantity int) (domain.Order, error) {
	o, err := domain.NewOrder(userID, ticketTypeID, quantity)
	if err != nil {
		return domain.Order{}, err
	}
	o.CreatedAt = s.now().UTC()
	o, err = s.repo.Create(ctx, o)
	if err != nil {
		return domain.Order{}, fmt.Errorf("place order: %w", err)
	}
	s.log.Info("order placed", "order_id", o.ID, "ticket_type_id", ticketTypeID, "quantity", quantity)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// Tickets returns the IDs of the tickets whose holder is the order. For a
// cancelled order these may since have been claimed by someone else.
func (s *Service) Tickets(ctx context.Context, id int64) ([]int64, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.HeldTickets(ctx, id)
}

func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("order deleted", "order_id", id)
	return nil
}

type insufficientSupply struct {
	claimed int
}

func (e insufficientSupply) Error() string {
	return fmt.Sprintf("insufficient supply: claimed %d", e.claimed)
}

// Book claims exactly the order's quantity of tickets or none at all.
//
// A shortfall is not an error: the result reports BookInsufficientSupply and
// the order stays created. Booking a fulfilled order returns
// domain.ErrAlreadyFulfilled and booking a cancelled one
// domain.ErrOrderCancelled; neither touches any ticket.
func (s *Service) Book(ctx context.Context, id int64) (domain.BookResult, error) {
	var booked domain.Order
	var claimed int

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if err := o.CheckBookable(); err != nil {
			return err
		}

		claimed, err = tx.ClaimTickets(ctx, o.TicketTypeID, o.ID, o.Quantity)
		if err != nil {
			return err
		}
		if claimed != o.Quantity {
			booked = o
			return insufficientSupply{claimed: claimed}
		}

		if err := o.Fulfil(s.now()); err != nil {
			return err
		}
		if err := tx.UpdateOrderState(ctx, o); err != nil {
			return err
		}
		payload, err := json.Marshal(domain.OrderFulfilled{
			OrderID:      o.ID,
			UserID:       o.UserID,
			TicketTypeID: o.TicketTypeID,
			Quantity:     o.Quantity,
			FulfilledAt:  *o.StateChangeAt,
		})
		if err != nil {
			return err
		}
		booked = o
		return tx.AppendOutbox(ctx, s.event(ctx, o.ID, domain.EventOrderFulfilled, payload))
	})

	var short insufficientSupply
	switch {
	case errors.As(err, &short):
		s.log.Info("order not fulfilled, insufficient supply", "order_id", id, "requested", booked.Quantity, "claimed", short.claimed)
		return domain.BookResult{Outcome: domain.BookInsufficientSupply, Claimed: short.claimed, Order: booked}, nil
	case err != nil:
		return domain.BookResult{}, err
	}

	s.log.Info("order fulfilled", "order_id", id, "quantity", booked.Quantity)
	return domain.BookResult{Fulfilled: true, Outcome: domain.BookFulfilled, Claimed: claimed, Order: booked}, nil
}

// Cancel releases a fulfilled order's tickets back to the pool once
// domain.GracePeriod has passed since fulfilment. Before that it is a no-op
// reported as CancelGracePeriodNotElapsed. The tickets keep their holder
// reference; they become available because the holder is cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (domain.CancelResult, error) {
	var res domain.CancelResult

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		wait, err := o.CancelWait(now)
		if err != nil {
			return err
		}
		if wait > 0 {
			res = domain.CancelResult{Outcome: domain.CancelGracePeriodNotElapsed, RetryAfter: wait, Order: o}
			return nil
		}

		locked, err := tx.LockAvailable(ctx, o.TicketTypeID, o.Quantity)
		if err != nil {
			return err
		}
		s.log.Debug("locked available tickets for cancellation", "order_id", o.ID, "locked", locked)

		if _, err := o.Cancel(now); err != nil {
			return err
		}
		if err := tx.UpdateOrderState(ctx, o); err != nil {
			return err
		}
		payload, err := json.Marshal(domain.OrderCancelled{
			OrderID:      o.ID,
			UserID:       o.UserID,
			TicketTypeID: o.TicketTypeID,
			Quantity:     o.Quantity,
			CancelledAt:  *o.StateChangeAt,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, s.event(ctx, o.ID, domain.EventOrderCancelled, payload)); err != nil {
			return err
		}
		res = domain.CancelResult{Cancelled: true, Outcome: domain.CancelCompleted, Order: o}
		return nil
	})
	if err != nil {
		return domain.CancelResult{}, err
	}

	if res.Cancelled {
		s.log.Info("order cancelled", "order_id", id)
	} else {
		s.log.Info("order cancellation deferred", "order_id", id, "retry_after", res.RetryAfter.String())
	}
	return res, nil
}

func (s *Service) event(ctx context.Context, orderID int64, eventType string, payload []byte) outbox.Event {
	return outbox.New(aggregateType, strconv.FormatInt(orderID, 10), eventType, payload,
		map[string]string{"source": "ticket-service"}, tracing.Traceparent(ctx))
}
