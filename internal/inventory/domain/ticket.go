package domain

import (
	"errors"
	"time"

	orderdom "github.com/dmehra2102/Ticket-Allocation-System/internal/order/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidQuantity = errors.New("ticket type quantity must be at least 1")
	ErrInvalidName     = errors.New("name must not be empty")
)

type Event struct {
	ID          int64
	Name        string
	Description string
	Date        time.Time
}

// TicketType is a purchasable offering with a fixed supply. Quantity is set
// at creation and never changes; exactly Quantity tickets exist for it.
type TicketType struct {
	ID       int64
	EventID  int64
	Name     string
	Quantity int
}

func NewTicketType(eventID int64, name string, quantity int) (TicketType, error) {
	if name == "" {
		return TicketType{}, ErrInvalidName
	}
	if quantity < 1 {
		return TicketType{}, ErrInvalidQuantity
	}
	return TicketType{EventID: eventID, Name: name, Quantity: quantity}, nil
}

// Ticket is one allocatable unit. OrderID is the holder, nil when unheld.
type Ticket struct {
	ID           int64
	TicketTypeID int64
	OrderID      *int64
}

// IsAvailable reports whether the ticket can be claimed: it has no holder, or
// its holder order has been cancelled. holderState is ignored when the ticket
// is unheld.
func (t Ticket) IsAvailable(holderState orderdom.State) bool {
	return t.OrderID == nil || holderState == orderdom.StateCancelled
}
