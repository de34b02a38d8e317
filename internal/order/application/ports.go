package application

import (
	"context"
	"time"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/outbox"
)

// Tx is the unit of work a booking or cancellation runs in. Everything done
// through one Tx commits or rolls back together.
type Tx interface {
	// LockOrder loads the order and holds its row lock until the end of the
	// transaction.
	LockOrder(ctx context.Context, id int64) (domain.Order, error)
	// ClaimTickets assigns up to n available tickets of the type to the
	// order, skipping tickets locked by concurrent transactions, and returns
	// how many were assigned.
	ClaimTickets(ctx context.Context, ticketTypeID, orderID int64, n int) (int, error)
	// LockAvailable locks up to n available tickets without waiting and
	// returns how many were locked.
	LockAvailable(ctx context.Context, ticketTypeID int64, n int) (int, error)
	UpdateOrderState(ctx context.Context, o domain.Order) error
	AppendOutbox(ctx context.Context, ev outbox.Event) error
}

type OrderRepository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Create(ctx context.Context, o domain.Order) (domain.Order, error)
	Get(ctx context.Context, id int64) (domain.Order, error)
	Delete(ctx context.Context, id int64) error
	HeldTickets(ctx context.Context, orderID int64) ([]int64, error)
	// ListCancellable returns fulfilled orders whose last state change is at
	// or before cutoff, oldest first.
	ListCancellable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error)
}
