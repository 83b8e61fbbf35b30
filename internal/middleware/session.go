package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/efleague/admin/internal/model"
)

type contextKey string

const contextKeySession contextKey = "session"

// SessionReader reports the persisted admin session.
type SessionReader interface {
	Status(ctx context.Context) (model.Session, error)
}

// RequireAdmin only lets requests through while the admin is logged in. The
// session state is read from the admin record on every request and stored
// in the request context.
func RequireAdmin(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Status(r.Context())
			if err != nil {
				slog.Warn("admin gate: session lookup failed", "err", err)
			}
			if err != nil || !sess.Authenticated {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), contextKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by RequireAdmin.
func SessionFromContext(ctx context.Context) (model.Session, bool) {
	v, ok := ctx.Value(contextKeySession).(model.Session)
	return v, ok
}
