package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/domain"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/storage/postgres"
)

// availableFrom joins each ticket to its holder order. availablePredicate is
// the SQL form of domain.Ticket.IsAvailable and is the only place it is
// spelled out for Postgres.
const (
	availableFrom      = `tickets t LEFT JOIN orders o ON o.id = t.order_id`
	availablePredicate = `(t.order_id IS NULL OR o.state = 'cancelled')`
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO events (name, description, event_date) VALUES ($1,$2,$3) RETURNING id`,
		e.Name, e.Description, e.Date).Scan(&e.ID)
	if err != nil {
		r.log.Error("insert event failed", "err", err)
		return domain.Event{}, err
	}
	return e, nil
}

func (r *Repository) CreateTicketType(ctx context.Context, tt domain.TicketType) (domain.TicketType, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.TicketType{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `INSERT INTO ticket_types (event_id, name, quantity) VALUES ($1,$2,$3) RETURNING id`,
		tt.EventID, tt.Name, tt.Quantity).Scan(&tt.ID)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return domain.TicketType{}, fmt.Errorf("event %d: %w", tt.EventID, domain.ErrNotFound)
		}
		r.log.Error("insert ticket type failed", "event_id", tt.EventID, "err", err)
		return domain.TicketType{}, err
	}

	rows := make([][]any, tt.Quantity)
	for i := range rows {
		rows[i] = []any{tt.ID}
	}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"tickets"}, []string{"ticket_type_id"}, pgx.CopyFromRows(rows))
	if err != nil {
		r.log.Error("copy tickets failed", "ticket_type_id", tt.ID, "err", err)
		return domain.TicketType{}, err
	}
	if copied != int64(tt.Quantity) {
		return domain.TicketType{}, fmt.Errorf("created %d tickets, want %d", copied, tt.Quantity)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.TicketType{}, err
	}
	return tt, nil
}

func (r *Repository) GetTicketType(ctx context.Context, id int64) (domain.TicketType, error) {
	var tt domain.TicketType
	err := r.pool.QueryRow(ctx, `SELECT id, event_id, name, quantity FROM ticket_types WHERE id=$1`, id).
		Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TicketType{}, domain.ErrNotFound
	}
	return tt, err
}

func (r *Repository) CountTickets(ctx context.Context, ticketTypeID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM tickets WHERE ticket_type_id=$1`, ticketTypeID).Scan(&n)
	return n, err
}

func (r *Repository) AvailableCount(ctx context.Context, ticketTypeID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM `+availableFrom+`
		WHERE t.ticket_type_id = $1 AND `+availablePredicate, ticketTypeID).Scan(&n)
	return n, err
}

func (r *Repository) ListAvailable(ctx context.Context, ticketTypeID int64) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.ticket_type_id, t.order_id FROM `+availableFrom+`
		WHERE t.ticket_type_id = $1 AND `+availablePredicate+` ORDER BY t.id`, ticketTypeID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Ticket, error) {
		var t domain.Ticket
		err := row.Scan(&t.ID, &t.TicketTypeID, &t.OrderID)
		return t, err
	})
}

// ClaimAvailable assigns up to n available tickets of the type to orderID
// inside tx. Tickets locked by other transactions are skipped rather than
// waited on, so the count may fall short under contention; the caller must
// roll back when it does.
func ClaimAvailable(ctx context.Context, tx pgx.Tx, ticketTypeID, orderID int64, n int) (int, error) {
	tag, err := tx.Exec(ctx, `
		WITH candidates AS (
			SELECT t.id FROM `+availableFrom+`
			WHERE t.ticket_type_id = $1 AND `+availablePredicate+`
			ORDER BY t.id
			LIMIT $2
			FOR UPDATE OF t SKIP LOCKED
		)
		UPDATE tickets SET order_id = $3
		FROM candidates
		WHERE tickets.id = candidates.id`, ticketTypeID, n, orderID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// LockAvailable locks up to n available tickets of the type without waiting
// and returns how many it got.
func LockAvailable(ctx context.Context, tx pgx.Tx, ticketTypeID int64, n int) (int, error) {
	rows, err := tx.Query(ctx, `
		SELECT t.id FROM `+availableFrom+`
		WHERE t.ticket_type_id = $1 AND `+availablePredicate+`
		ORDER BY t.id
		LIMIT $2
		FOR UPDATE OF t SKIP LOCKED`, ticketTypeID, n)
	if err != nil {
		return 0, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return len(ids), err
}
