package domain

import "time"

const (
	EventOrderFulfilled = "OrderFulfilled"
	EventOrderCancelled = "OrderCancelled"
)

type OrderFulfilled struct {
	OrderID      int64     `json:"order_id"`
	UserID       string    `json:"user_id"`
	TicketTypeID int64     `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
	FulfilledAt  time.Time `json:"fulfilled_at"`
}

type OrderCancelled struct {
	OrderID      int64     `json:"order_id"`
	UserID       string    `json:"user_id"`
	TicketTypeID int64     `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
	CancelledAt  time.Time `json:"cancelled_at"`
}
