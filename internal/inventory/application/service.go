package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/domain"
)

type Service struct {
	log  *slog.Logger
	repo TicketRepository
}

func NewService(log *slog.Logger, repo TicketRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) CreateEvent(ctx context.Context, name, description string, date time.Time) (domain.Event, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Event{}, domain.ErrInvalidName
	}
	y, m, d := date.Date()
	e, err := s.repo.CreateEvent(ctx, domain.Event{
		Name:        name,
		Description: description,
		Date:        time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("create event: %w", err)
	}
	return e, nil
}

func (s *Service) CreateTicketType(ctx context.Context, eventID int64, name string, quantity int) (domain.TicketType, error) {
	tt, err := domain.NewTicketType(eventID, strings.TrimSpace(name), quantity)
	if err != nil {
		return domain.TicketType{}, err
	}
	tt, err = s.repo.CreateTicketType(ctx, tt)
	if err != nil {
		return domain.TicketType{}, fmt.Errorf("create ticket type: %w", err)
	}
	s.log.Info("ticket type created", "ticket_type_id", tt.ID, "event_id", eventID, "quantity", tt.Quantity)
	return tt, nil
}

func (s *Service) GetTicketType(ctx context.Context, id int64) (domain.TicketType, error) {
	return s.repo.GetTicketType(ctx, id)
}

// AvailableCount is the number of tickets of the type that can be claimed
// right now: unheld, or held by a cancelled order.
func (s *Service) AvailableCount(ctx context.Context, ticketTypeID int64) (int, error) {
	if _, err := s.repo.GetTicketType(ctx, ticketTypeID); err != nil {
		return 0, err
	}
	return s.repo.AvailableCount(ctx, ticketTypeID)
}

func (s *Service) ListAvailable(ctx context.Context, ticketTypeID int64) ([]domain.Ticket, error) {
	if _, err := s.repo.GetTicketType(ctx, ticketTypeID); err != nil {
		return nil, err
	}
	return s.repo.ListAvailable(ctx, ticketTypeID)
}

// CheckSupply verifies that the ticket type still owns exactly Quantity
// tickets.
func (s *Service) CheckSupply(ctx context.Context, ticketTypeID int64) error {
	tt, err := s.repo.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return err
	}
	n, err := s.repo.CountTickets(ctx, ticketTypeID)
	if err != nil {
		return err
	}
	if n != tt.Quantity {
		s.log.Error("ticket supply drifted", "ticket_type_id", ticketTypeID, "quantity", tt.Quantity, "tickets", n)
		return fmt.Errorf("ticket type %d owns %d tickets, want %d", ticketTypeID, n, tt.Quantity)
	}
	return nil
}
