package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/reporting/domain"
)

type ReportRepository interface {
	// CancelledQuantityByDate sums the quantity of cancelled orders per
	// event date. Re-claimed units stay counted against the cancelled order.
	CancelledQuantityByDate(ctx context.Context) ([]domain.DateCount, error)
	OrderCounts(ctx context.Context, eventID int64) (total, cancelled int64, err error)
}

type Service struct {
	log  *slog.Logger
	repo ReportRepository
}

func NewService(log *slog.Logger, repo ReportRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) MostCancelledDate(ctx context.Context) (domain.DateCount, error) {
	counts, err := s.repo.CancelledQuantityByDate(ctx)
	if err != nil {
		return domain.DateCount{}, fmt.Errorf("cancelled quantity by date: %w", err)
	}
	return domain.MostCancelled(counts)
}

func (s *Service) CancellationRate(ctx context.Context, eventID int64) (domain.CancellationRate, error) {
	total, cancelled, err := s.repo.OrderCounts(ctx, eventID)
	if err != nil {
		return domain.CancellationRate{}, fmt.Errorf("order counts: %w", err)
	}
	return domain.NewCancellationRate(eventID, total, cancelled)
}
