package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/reporting/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// CancelledQuantityByDate sums the ordered quantity of cancelled orders per
// event date. Units a cancelled order released still count here after
// another order re-claims them.
func (r *Repository) CancelledQuantityByDate(ctx context.Context) ([]domain.DateCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.event_date, SUM(o.quantity)::bigint
		FROM orders o
		JOIN ticket_types tt ON tt.id = o.ticket_type_id
		JOIN events e ON e.id = tt.event_id
		WHERE o.state = 'cancelled'
		GROUP BY e.event_date
		ORDER BY e.event_date`)
	if err != nil {
		r.log.Error("cancelled quantity query failed", "err", err)
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DateCount, error) {
		var dc domain.DateCount
		err := row.Scan(&dc.Date, &dc.CancelledQuantity)
		return dc, err
	})
}

func (r *Repository) OrderCounts(ctx context.Context, eventID int64) (int64, int64, error) {
	var total, cancelled int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE o.state = 'cancelled')
		FROM orders o
		JOIN ticket_types tt ON tt.id = o.ticket_type_id
		WHERE tt.event_id = $1`, eventID).Scan(&total, &cancelled)
	if err != nil {
		r.log.Error("order counts query failed", "event_id", eventID, "err", err)
		return 0, 0, err
	}
	return total, cancelled, nil
}
