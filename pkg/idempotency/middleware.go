package idempotency

import (
	"context"
	"log/slog"
	"net/http"
)

const Header = "Idempotency-Key"

type Checker interface {
	RequestKey(route, key string) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Middleware rejects replays of a request carrying an Idempotency-Key that
// was already accepted for the same route. Requests without the header pass
// through. A key is only kept once the handler succeeds; on a 4xx or 5xx
// it is released so a corrected request may reuse it.
func Middleware(log *slog.Logger, checker Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(Header)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := checker.RequestKey(r.Method+" "+r.URL.Path, raw)
			seen, err := checker.Seen(r.Context(), key)
			if err != nil {
				log.Error("idempotency check failed", "key", key, "err", err)
				http.Error(w, "idempotency store unavailable", http.StatusServiceUnavailable)
				return
			}
			if seen {
				log.Info("duplicate request rejected", "key", key)
				http.Error(w, "duplicate request", http.StatusConflict)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusBadRequest {
				if err := checker.Forget(r.Context(), key); err != nil {
					log.Warn("idempotency release failed", "key", key, "err", err)
				}
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
