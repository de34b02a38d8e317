package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/domain"
)

// Sweeper cancels fulfilled orders whose grace period has elapsed. The
// grace period is only ever evaluated when Cancel is called, so something
// has to call it.
type Sweeper struct {
	log       *slog.Logger
	repo      OrderRepository
	svc       *Service
	interval  time.Duration
	batchSize int
}

func NewSweeper(log *slog.Logger, repo OrderRepository, svc *Service, interval time.Duration, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		log:       log,
		repo:      repo,
		svc:       svc,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return nil
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error("sweep failed", "err", err)
			}
		}
	}
}

// Sweep runs one pass and returns the number of orders cancelled.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.svc.now().Add(-domain.GracePeriod)
	ids, err := s.repo.ListCancellable(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		res, err := s.svc.Cancel(ctx, id)
		if err != nil {
			// raced with another sweeper or an explicit cancel
			if errors.Is(err, domain.ErrAlreadyCancelled) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.log.Error("sweep cancel failed", "order_id", id, "err", err)
			continue
		}
		if res.Cancelled {
			cancelled++
		}
	}
	if cancelled > 0 {
		s.log.Info("sweep complete", "cancelled", cancelled, "candidates", len(ids))
	}
	return cancelled, nil
}
