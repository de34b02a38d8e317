package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invapp "github.com/dmehra2102/Ticket-Allocation-System/internal/inventory/application"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/order/application"
	orderhttp "github.com/dmehra2102/Ticket-Allocation-System/internal/order/infrastructure/http"
	"github.com/dmehra2102/Ticket-Allocation-System/internal/storage/memory"
	"github.com/dmehra2102/Ticket-Allocation-System/pkg/logging"
)

type server struct {
	h     http.Handler
	store *memory.Store
	ttID  int64
	now   time.Time
}

func newServer(t *testing.T, supply int) *server {
	t.Helper()
	s := &server{store: memory.New(), now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := logging.Discard()
	inv := invapp.NewService(log, s.store)
	ev, err := inv.CreateEvent(context.Background(), "Gig", "", s.now)
	require.NoError(t, err)
	tt, err := inv.CreateTicketType(context.Background(), ev.ID, "GA", supply)
	require.NoError(t, err)
	s.ttID = tt.ID

	svc := application.NewService(log, s.store, application.WithClock(func() time.Time { return s.now }))
	s.h = orderhttp.NewHandler(log, svc).Routes()
	return s
}

func (s *server) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (s *server) place(t *testing.T, qty int) string {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/orders", map[string]any{
		"user_id": "alice", "ticket_type_id": s.ttID, "quantity": qty,
	})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "created", body["state"])
	return strconv.FormatInt(int64(body["id"].(float64)), 10)
}

func TestBookAndCancelFlow(t *testing.T) {
	s := newServer(t, 5)
	id := s.place(t, 3)

	code, body := s.do(t, http.MethodPost, "/orders/"+id+"/book", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["fulfilled"])
	assert.Equal(t, "fulfilled", body["outcome"])

	code, body = s.do(t, http.MethodPost, "/orders/"+id+"/book", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body["error"], "already fulfilled")

	code, body = s.do(t, http.MethodGet, "/orders/"+id+"/tickets", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["ticket_ids"], 3)

	code, body = s.do(t, http.MethodPost, "/orders/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["cancelled"])
	assert.Equal(t, "grace_period_not_elapsed", body["outcome"])
	assert.Equal(t, float64(1800), body["retry_after_seconds"])

	s.now = s.now.Add(31 * time.Minute)
	code, body = s.do(t, http.MethodPost, "/orders/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["cancelled"])

	code, body = s.do(t, http.MethodGet, "/orders/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancelled", body["state"])

	code, _ = s.do(t, http.MethodPost, "/orders/"+id+"/book", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestBookInsufficientSupply(t *testing.T) {
	s := newServer(t, 2)
	id := s.place(t, 3)

	code, body := s.do(t, http.MethodPost, "/orders/"+id+"/book", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["fulfilled"])
	assert.Equal(t, "insufficient_supply", body["outcome"])
}

func TestOrderValidationAndLookup(t *testing.T) {
	s := newServer(t, 2)

	code, _ := s.do(t, http.MethodPost, "/orders", map[string]any{"user_id": "a", "ticket_type_id": s.ttID, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/orders", map[string]any{"user_id": "a", "ticket_type_id": 999, "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/orders", map[string]any{"user_id": "a", "ticket_type_id": s.ttID, "quantity": 1, "extra": true})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/orders/404", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/orders/404/cancel", nil)
	assert.Equal(t, http.StatusNotFound, code)

	id := s.place(t, 1)
	code, _ = s.do(t, http.MethodPost, "/orders/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodDelete, "/orders/"+id, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(t, http.MethodGet, "/orders/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
