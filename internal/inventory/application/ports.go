package application

import (
	"context"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/domain"
)

type TicketRepository interface {
	CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error)
	// CreateTicketType stores tt together with exactly tt.Quantity unheld
	// tickets, atomically.
	CreateTicketType(ctx context.Context, tt domain.TicketType) (domain.TicketType, error)
	GetTicketType(ctx context.Context, id int64) (domain.TicketType, error)
	CountTickets(ctx context.Context, ticketTypeID int64) (int, error)
	AvailableCount(ctx context.Context, ticketTypeID int64) (int, error)
	ListAvailable(ctx context.Context, ticketTypeID int64) ([]domain.Ticket, error)
}
