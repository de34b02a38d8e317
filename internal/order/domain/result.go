package domain

import "time"

type BookOutcome string

const (
	BookFulfilled          BookOutcome = "fulfilled"
	BookInsufficientSupply BookOutcome = "insufficient_supply"
)

type BookResult struct {
	Fulfilled bool
	Outcome   BookOutcome
	// Claimed is the number of units the claim managed to lock. On
	// insufficient supply it is below the order quantity and nothing was kept.
	Claimed int
	Order   Order
}

type CancelOutcome string

const (
	CancelCompleted             CancelOutcome = "cancelled"
	CancelGracePeriodNotElapsed CancelOutcome = "grace_period_not_elapsed"
)

type CancelResult struct {
	Cancelled  bool
	Outcome    CancelOutcome
	RetryAfter time.Duration
	Order      Order
}
