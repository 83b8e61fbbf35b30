package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/efleague/admin/internal/model"
	"github.com/stretchr/testify/assert"
)

type stubSessions struct {
	sess model.Session
	err  error
}

func (s stubSessions) Status(ctx context.Context) (model.Session, error) {
	return s.sess, s.err
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		name     string
		sessions stubSessions
		want     int
	}{
		{"logged in", stubSessions{sess: model.Session{Authenticated: true}}, http.StatusOK},
		{"logged out", stubSessions{}, http.StatusUnauthorized},
		{"store down", stubSessions{sess: model.Session{Authenticated: true}, err: errors.New("down")}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sess, ok := SessionFromContext(r.Context())
				seen = ok && sess.Authenticated
				w.WriteHeader(http.StatusOK)
			})

			rr := httptest.NewRecorder()
			RequireAdmin(tc.sessions)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil))

			assert.Equal(t, tc.want, rr.Code)
			assert.Equal(t, tc.want == http.StatusOK, seen)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}
