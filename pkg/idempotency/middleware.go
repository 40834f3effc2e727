package idempotency

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

const Header = "Idempotency-Key"

// Middleware rejects a request whose Idempotency-Key was already used by the
// same caller with 409. Requests without the header pass through. A claim is
// released when the handler does not answer 2xx so the client may retry.
func Middleware(log *slog.Logger, g Guard, scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(Header)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := "idem:http:" + scope(r) + ":" + r.Method + ":" + r.URL.Path + ":" + raw

			seen, err := g.Seen(r.Context(), key)
			if err != nil {
				log.Error("idempotency check failed", "err", err)
				http.Error(w, `{"error":"store unavailable"}`, http.StatusServiceUnavailable)
				return
			}
			if seen {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"duplicate request"}`))
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if st := ww.Status(); st < 200 || st > 299 {
				if err := g.Forget(r.Context(), key); err != nil {
					log.Warn("idempotency release failed", "key", key, "err", err)
				}
			}
		})
	}
}
