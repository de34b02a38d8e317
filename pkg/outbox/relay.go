package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultMaxAttempts bounds how often a transiently failing event is retried
// before it is parked as failed.
const DefaultMaxAttempts = 10

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	// MarkRetry returns a leased event to pending and counts the attempt.
	MarkRetry(ctx context.Context, id int64, errMsg string) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
	attempts  int
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string) *Relay {
	return &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
		attempts:  DefaultMaxAttempts,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.Flush(ctx); err != nil {
				r.log.Error("relay lock batch error", "err", err)
			}
		}
	}
}

// Flush relays one batch and reports how many events were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(events))
	for i, e := range events {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			r.release(ctx, e, err)
			continue
		}
		ids = append(ids, e.ID)
		// keep the remaining events leased while a slow broker drains the batch
		if rest := events[i+1:]; len(rest) > 0 && i > 0 && i%25 == 0 {
			pending := make([]int64, 0, len(rest))
			for _, p := range rest {
				pending = append(pending, p.ID)
			}
			if err := r.store.ExtendLease(ctx, r.relayID, pending, r.lease); err != nil {
				r.log.Warn("relay extend lease error", "err", err)
			}
		}
	}
	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids); err != nil {
			r.log.Error("relay mark sent error", "err", err)
			return 0, err
		}
	}
	return len(ids), nil
}

// release hands a failed event back to the store. Permanent errors and
// events out of attempts are parked as failed; anything else goes back to
// pending for the next flush.
func (r *Relay) release(ctx context.Context, e Event, cause error) {
	if errors.Is(cause, ErrPermanent) || e.RetryCount+1 >= r.attempts {
		r.log.Error("outbox event parked", "event_id", e.ID, "attempts", e.RetryCount+1, "err", cause)
		if err := r.store.MarkFailed(ctx, e.ID, cause.Error()); err != nil {
			r.log.Error("relay mark failed error", "event_id", e.ID, "err", err)
		}
		return
	}
	if err := r.store.MarkRetry(ctx, e.ID, cause.Error()); err != nil {
		// the lease still runs out, so LockBatch picks it up again
		r.log.Warn("relay mark retry error", "event_id", e.ID, "err", err)
	}
}
