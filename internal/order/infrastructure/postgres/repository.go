package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	invpg "github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/application"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/domain"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/storage/postgres"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Create(ctx context.Context, o domain.Order) (domain.Order, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO orders (user_id, ticket_type_id, quantity, state, created_at)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		o.UserID, o.TicketTypeID, o.Quantity, o.State, o.CreatedAt).Scan(&o.ID)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return domain.Order{}, fmt.Errorf("ticket type %d: %w", o.TicketTypeID, domain.ErrUnknownTicketType)
		}
		r.log.Error("insert order failed", "err", err)
		return domain.Order{}, err
	}
	return o, nil
}

const orderColumns = `id, user_id, ticket_type_id, quantity, state, state_change_at, created_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.TicketTypeID, &o.Quantity, &o.State, &o.StateChangeAt, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := domain.ParseState(string(o.State)); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) HeldTickets(ctx context.Context, orderID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM tickets WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *Repository) ListCancellable(ctx context.Context, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM orders
		WHERE state = 'fulfilled' AND state_change_at <= $1
		ORDER BY state_change_at, id
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (domain.Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) ClaimTickets(ctx context.Context, ticketTypeID, orderID int64, n int) (int, error) {
	return invpg.ClaimAvailable(ctx, t.tx, ticketTypeID, orderID, n)
}

func (t *pgTx) LockAvailable(ctx context.Context, ticketTypeID int64, n int) (int, error) {
	return invpg.LockAvailable(ctx, t.tx, ticketTypeID, n)
}

func (t *pgTx) UpdateOrderState(ctx context.Context, o domain.Order) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET state=$2, state_change_at=$3 WHERE id=$1`, o.ID, o.State, o.StateChangeAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) AppendOutbox(ctx context.Context, ev outbox.Event) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		ev.AggregateType, ev.AggregateID, ev.Type, ev.Payload, ev.Headers, ev.Traceparent)
	return err
}

type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

// LockBatch leases pending events, plus in-progress events whose lease ran
// out because a relay died mid-batch.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at, retry_count
		FROM outbox
		WHERE status = 'pending' OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		var headers map[string]string
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload, &headers, &event.Traceparent, &event.CreatedAt, &event.RetryCount); err != nil {
			return nil, err
		}
		event.Headers = headers
		event.Status = outbox.StatusInProgress
		event.RelayID = relayID
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2 * interval '1 millisecond' WHERE id = ANY($3)`, relayID, lease.Milliseconds(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1 WHERE id=$1`, id, errMsg)
	return err
}

func (s *OutboxStore) MarkRetry(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='pending', relay_id=NULL, lease_until=NULL, last_error=$2, retry_count=retry_count+1 WHERE id=$1`, id, errMsg)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + $1 * interval '1 millisecond' WHERE id = ANY($2) AND relay_id=$3`, lease.Milliseconds(), ids, relayID)
	return err
}

var (
	_ application.OrderRepository = (*Repository)(nil)
	_ outbox.Store                = (*OutboxStore)(nil)
)
