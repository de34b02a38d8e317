// Package memory is an in-process store implementing the inventory, order,
// reporting and outbox ports. Transactions are serialised by a single mutex
// and run against a private copy of the data that replaces the shared copy
// only on success, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	invdom "github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/domain"
	orderapp "github.com/dmehra2102/Ticket-Allocation-System/internal/order/application"
	orderdom "github.com/dmehra2102/Ticket-Allocation-System/internal/order/domain"
	repdom "github.com/dmehra2102/Ticket-Allocation-System/internal/reporting/domain"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/outbox"
)

type state struct {
	seq     int64
	events  map[int64]invdom.Event
	types   map[int64]invdom.TicketType
	tickets []invdom.Ticket
	orders  map[int64]orderdom.Order
	outbox  []outboxRow
}

type outboxRow struct {
	event      outbox.Event
	leaseUntil time.Time
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	return &state{
		seq:     s.seq,
		events:  maps.Clone(s.events),
		types:   maps.Clone(s.types),
		tickets: slices.Clone(s.tickets),
		orders:  maps.Clone(s.orders),
		outbox:  slices.Clone(s.outbox),
	}
}

func (s *state) available(t invdom.Ticket) bool {
	var holder orderdom.State
	if t.OrderID != nil {
		holder = s.orders[*t.OrderID].State
	}
	return t.IsAvailable(holder)
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{
		st: &state{
			events: map[int64]invdom.Event{},
			types:  map[int64]invdom.TicketType{},
			orders: map[int64]orderdom.Order{},
		},
		now: time.Now,
	}
}

// Inventory

func (s *Store) CreateEvent(_ context.Context, e invdom.Event) (invdom.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.st.next()
	s.st.events[e.ID] = e
	return e, nil
}

func (s *Store) CreateTicketType(_ context.Context, tt invdom.TicketType) (invdom.TicketType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.events[tt.EventID]; !ok {
		return invdom.TicketType{}, invdom.ErrNotFound
	}
	tt.ID = s.st.next()
	s.st.types[tt.ID] = tt
	for range tt.Quantity {
		s.st.tickets = append(s.st.tickets, invdom.Ticket{ID: s.st.next(), TicketTypeID: tt.ID})
	}
	return tt, nil
}

func (s *Store) GetTicketType(_ context.Context, id int64) (invdom.TicketType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tt, ok := s.st.types[id]
	if !ok {
		return invdom.TicketType{}, invdom.ErrNotFound
	}
	return tt, nil
}

func (s *Store) CountTickets(_ context.Context, ticketTypeID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.st.tickets {
		if t.TicketTypeID == ticketTypeID {
			n++
		}
	}
	return n, nil
}

func (s *Store) AvailableCount(ctx context.Context, ticketTypeID int64) (int, error) {
	ts, err := s.ListAvailable(ctx, ticketTypeID)
	return len(ts), err
}

func (s *Store) ListAvailable(_ context.Context, ticketTypeID int64) ([]invdom.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []invdom.Ticket
	for _, t := range s.st.tickets {
		if t.TicketTypeID == ticketTypeID && s.st.available(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Orders

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orderapp.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Create(_ context.Context, o orderdom.Order) (orderdom.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.types[o.TicketTypeID]; !ok {
		return orderdom.Order{}, orderdom.ErrUnknownTicketType
	}
	o.ID = s.st.next()
	s.st.orders[o.ID] = o
	return o, nil
}

func (s *Store) Get(_ context.Context, id int64) (orderdom.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return orderdom.Order{}, orderdom.ErrNotFound
	}
	return o, nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.orders[id]; !ok {
		return orderdom.ErrNotFound
	}
	delete(s.st.orders, id)
	for i, t := range s.st.tickets {
		if t.OrderID != nil && *t.OrderID == id {
			s.st.tickets[i].OrderID = nil
		}
	}
	return nil
}

func (s *Store) HeldTickets(_ context.Context, orderID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, t := range s.st.tickets {
		if t.OrderID != nil && *t.OrderID == orderID {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (s *Store) ListCancellable(_ context.Context, cutoff time.Time, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []orderdom.Order
	for _, o := range s.st.orders {
		if o.State == orderdom.StateFulfilled && o.StateChangeAt != nil && !o.StateChangeAt.After(cutoff) {
			due = append(due, o)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].StateChangeAt.Equal(*due[j].StateChangeAt) {
			return due[i].StateChangeAt.Before(*due[j].StateChangeAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]int64, 0, len(due))
	for _, o := range due {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

type tx struct {
	st *state
}

func (t *tx) LockOrder(_ context.Context, id int64) (orderdom.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orderdom.Order{}, orderdom.ErrNotFound
	}
	return o, nil
}

func (t *tx) ClaimTickets(_ context.Context, ticketTypeID, orderID int64, n int) (int, error) {
	claimed := 0
	for i := range t.st.tickets {
		if claimed == n {
			break
		}
		tk := t.st.tickets[i]
		if tk.TicketTypeID != ticketTypeID || !t.st.available(tk) {
			continue
		}
		holder := orderID
		t.st.tickets[i].OrderID = &holder
		claimed++
	}
	return claimed, nil
}

func (t *tx) LockAvailable(_ context.Context, ticketTypeID int64, n int) (int, error) {
	locked := 0
	for _, tk := range t.st.tickets {
		if locked == n {
			break
		}
		if tk.TicketTypeID == ticketTypeID && t.st.available(tk) {
			locked++
		}
	}
	return locked, nil
}

func (t *tx) UpdateOrderState(_ context.Context, o orderdom.Order) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return orderdom.ErrNotFound
	}
	cur.State = o.State
	cur.StateChangeAt = o.StateChangeAt
	t.st.orders[o.ID] = cur
	return nil
}

func (t *tx) AppendOutbox(_ context.Context, ev outbox.Event) error {
	ev.ID = t.st.next()
	ev.Status = outbox.StatusPending
	t.st.outbox = append(t.st.outbox, outboxRow{event: ev})
	return nil
}

// Reporting

func (s *Store) CancelledQuantityByDate(_ context.Context) ([]repdom.DateCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := map[time.Time]int64{}
	for _, o := range s.st.orders {
		if o.State != orderdom.StateCancelled {
			continue
		}
		tt, ok := s.st.types[o.TicketTypeID]
		if !ok {
			continue
		}
		byDate[s.st.events[tt.EventID].Date] += int64(o.Quantity)
	}
	out := make([]repdom.DateCount, 0, len(byDate))
	for d, n := range byDate {
		out = append(out, repdom.DateCount{Date: d, CancelledQuantity: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) OrderCounts(_ context.Context, eventID int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total, cancelled int64
	for _, o := range s.st.orders {
		if s.st.types[o.TicketTypeID].EventID != eventID {
			continue
		}
		total++
		if o.State == orderdom.StateCancelled {
			cancelled++
		}
	}
	return total, cancelled, nil
}

// Outbox

func (s *Store) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []outbox.Event
	for i := range s.st.outbox {
		if len(out) == batchSize {
			break
		}
		row := &s.st.outbox[i]
		switch {
		case row.event.Status == outbox.StatusPending:
		case row.event.Status == outbox.StatusInProgress && now.After(row.leaseUntil):
		default:
			continue
		}
		row.event.Status = outbox.StatusInProgress
		row.event.RelayID = relayID
		row.leaseUntil = now.Add(lease)
		out = append(out, row.event)
	}
	return out, nil
}

func (s *Store) MarkSent(_ context.Context, ids []int64) error {
	return s.updateOutbox(ids, func(r *outboxRow) { r.event.Status = outbox.StatusSent })
}

func (s *Store) MarkFailed(_ context.Context, id int64, errMsg string) error {
	return s.updateOutbox([]int64{id}, func(r *outboxRow) {
		r.event.Status = outbox.StatusFailed
		r.event.RetryCount++
		r.event.LastError = &errMsg
	})
}

func (s *Store) MarkRetry(_ context.Context, id int64, errMsg string) error {
	return s.updateOutbox([]int64{id}, func(r *outboxRow) {
		r.event.Status = outbox.StatusPending
		r.event.RelayID = ""
		r.event.RetryCount++
		r.event.LastError = &errMsg
		r.leaseUntil = time.Time{}
	})
}

func (s *Store) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	until := s.now().Add(lease)
	return s.updateOutbox(ids, func(r *outboxRow) {
		if r.event.RelayID == relayID {
			r.leaseUntil = until
		}
	})
}

var errNoRows = errors.New("no rows updated")

func (s *Store) updateOutbox(ids []int64, fn func(*outboxRow)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for i := range s.st.outbox {
		if slices.Contains(ids, s.st.outbox[i].event.ID) {
			fn(&s.st.outbox[i])
			updated++
		}
	}
	if updated == 0 {
		return errNoRows
	}
	return nil
}

// Outbox returns a copy of every outbox event in append order.
func (s *Store) Outbox() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.Event, 0, len(s.st.outbox))
	for _, r := range s.st.outbox {
		out = append(out, r.event)
	}
	return out
}

// SetStateChangeAt rewrites an order's last transition time, standing in for
// the passage of time in tests.
func (s *Store) SetStateChangeAt(id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return orderdom.ErrNotFound
	}
	at = at.UTC()
	o.StateChangeAt = &at
	s.st.orders[id] = o
	return nil
}

var (
	_ orderapp.OrderRepository = (*Store)(nil)
	_ outbox.Store             = (*Store)(nil)
)
