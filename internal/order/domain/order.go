package domain

import (
	"errors"
	"fmt"
	"time"
)

// GracePeriod is how long a fulfilled order must stay fulfilled before it
// can be cancelled.
const GracePeriod = 30 * time.Minute

var (
	ErrNotFound          = errors.New("order not found")
	ErrUnknownTicketType = errors.New("unknown ticket type")
	ErrInvalidQuantity   = errors.New("order quantity must be at least 1")
	ErrAlreadyFulfilled  = errors.New("order already fulfilled")
	ErrOrderCancelled    = errors.New("order is cancelled")
	ErrAlreadyCancelled  = errors.New("order already cancelled")
	ErrInvalidTransition = errors.New("invalid order state transition")
)

type State string

const (
	StateCreated   State = "created"
	StateFulfilled State = "fulfilled"
	StateCancelled State = "cancelled"
)

var transitions = map[State][]State{
	StateCreated:   {StateFulfilled},
	StateFulfilled: {StateCancelled},
}

func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StateCreated, StateFulfilled, StateCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order state %q", s)
}

// CanTransition reports whether the lifecycle allows moving from s to to.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

type Order struct {
	ID            int64
	UserID        string
	TicketTypeID  int64
	Quantity      int
	State         State
	StateChangeAt *time.Time
	CreatedAt     time.Time
}

func NewOrder(userID string, ticketTypeID int64, quantity int) (Order, error) {
	if quantity < 1 {
		return Order{}, ErrInvalidQuantity
	}
	return Order{
		UserID:       userID,
		TicketTypeID: ticketTypeID,
		Quantity:     quantity,
		State:        StateCreated,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (o Order) IsCancelled() bool {
	return o.State == StateCancelled
}

// CheckBookable returns nil only for orders that have never held units.
func (o Order) CheckBookable() error {
	switch o.State {
	case StateCreated:
		return nil
	case StateFulfilled:
		return ErrAlreadyFulfilled
	case StateCancelled:
		return ErrOrderCancelled
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, o.State)
}

func (o *Order) transition(to State, now time.Time) error {
	if !o.State.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, to)
	}
	at := now.UTC()
	o.State = to
	o.StateChangeAt = &at
	return nil
}

func (o *Order) Fulfil(now time.Time) error {
	if err := o.CheckBookable(); err != nil {
		return err
	}
	return o.transition(StateFulfilled, now)
}

// CancelWait reports how long the caller must still wait before Cancel can
// succeed. It errors when the order is not in a cancellable state at all.
func (o Order) CancelWait(now time.Time) (time.Duration, error) {
	if o.State.Terminal() {
		return 0, ErrAlreadyCancelled
	}
	if o.State != StateFulfilled || o.StateChangeAt == nil {
		return 0, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, StateCancelled)
	}
	elapsed := now.Sub(*o.StateChangeAt)
	if elapsed >= GracePeriod {
		return 0, nil
	}
	return GracePeriod - elapsed, nil
}

// Cancel moves a fulfilled order to cancelled once the grace period has
// elapsed. When it has not, the order is left untouched and the remaining
// wait is returned with a nil error.
func (o *Order) Cancel(now time.Time) (time.Duration, error) {
	wait, err := o.CancelWait(now)
	if err != nil || wait > 0 {
		return wait, err
	}
	return 0, o.transition(StateCancelled, now)
}
