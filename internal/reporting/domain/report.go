package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNoOrders        = errors.New("event has no orders")
	ErrNoCancellations = errors.New("no cancelled orders")
)

// DateCount is the cancelled ticket quantity of all events on one date.
type DateCount struct {
	Date              time.Time
	CancelledQuantity int64
}

type CancellationRate struct {
	EventID     int64
	TotalOrders int64
	Cancelled   int64
	// Percentage is cancelled/total*100 rounded to two places.
	Percentage decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func NewCancellationRate(eventID, total, cancelled int64) (CancellationRate, error) {
	if total == 0 {
		return CancellationRate{}, ErrNoOrders
	}
	pct := decimal.NewFromInt(cancelled).Mul(hundred).DivRound(decimal.NewFromInt(total), 2)
	return CancellationRate{
		EventID:     eventID,
		TotalOrders: total,
		Cancelled:   cancelled,
		Percentage:  pct,
	}, nil
}

// MostCancelled picks the date with the largest cancelled quantity. Ties go
// to the later date so the answer does not depend on row order.
func MostCancelled(counts []DateCount) (DateCount, error) {
	var best DateCount
	found := false
	for _, c := range counts {
		if c.CancelledQuantity <= 0 {
			continue
		}
		if !found || c.CancelledQuantity > best.CancelledQuantity ||
			(c.CancelledQuantity == best.CancelledQuantity && c.Date.After(best.Date)) {
			best = c
			found = true
		}
	}
	if !found {
		return DateCount{}, ErrNoCancellations
	}
	return best, nil
}
