package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/efleague/admin/internal/account"
	"github.com/efleague/admin/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminEmail = "admin@example.com"

type linkSender struct {
	links []string
	err   error
}

func (s *linkSender) SendPasswordReset(ctx context.Context, to, link string, expiresAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.links = append(s.links, link)
	return nil
}

// lastToken pulls the reset token out of the most recent link.
func (s *linkSender) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.links)
	u, err := url.Parse(s.links[len(s.links)-1])
	require.NoError(t, err)
	return u.Query().Get("reset_token")
}

type testEnv struct {
	h      *AuthHandler
	store  *store.MemoryStore
	sender *linkSender
}

func newTestEnv(t *testing.T, opts ...account.Option) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	mem := store.NewMemoryStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, mem.Create(context.Background(), adminEmail, string(hash)))

	sender := &linkSender{}
	svc, err := account.NewService(logger, mem, sender, account.Config{
		AdminEmail:   adminEmail,
		ResetBaseURL: "https://league.example.com/admin.html",
	}, opts...)
	require.NoError(t, err)

	return &testEnv{h: NewAuthHandler(logger, svc), store: mem, sender: sender}
}

func sendJSON(handler http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func authenticated(t *testing.T, env *testEnv) bool {
	t.Helper()
	acct, err := env.store.Get(context.Background(), adminEmail)
	require.NoError(t, err)
	return acct.IsAuthenticated
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := sendJSON(env.h.Login, http.MethodPost, "/api/admin/login", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, msgInvalidCredentials, decode(t, rr)["error"])
	assert.False(t, authenticated(t, env))

	rr = sendJSON(env.h.Login, http.MethodPost, "/api/admin/login", map[string]string{"password": "secret1"})
	assert.Equal(t, http.StatusOK, rr.Code)
	sess := decode(t, rr)["session"].(map[string]any)
	assert.Equal(t, true, sess["authenticated"])
	assert.True(t, authenticated(t, env))
}

func TestLoginFailuresLookAlike(t *testing.T) {
	env := newTestEnv(t)
	wrong := sendJSON(env.h.Login, http.MethodPost, "/api/admin/login", map[string]string{"password": "wrong"})

	env.store.Fail(errors.New("connection refused"))
	down := sendJSON(env.h.Login, http.MethodPost, "/api/admin/login", map[string]string{"password": "secret1"})

	assert.Equal(t, wrong.Code, down.Code)
	assert.Equal(t, wrong.Body.String(), down.Body.String())
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewBufferString(`{"password":`))
	rr := httptest.NewRecorder()
	env.h.Login(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = sendJSON(env.h.Login, http.MethodPost, "/api/admin/login", map[string]string{"password": "secret1", "role": "root"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogoutAndSession(t *testing.T) {
	env := newTestEnv(t)
	sendJSON(env.h.Login, http.MethodPost, "/api/admin/login", map[string]string{"password": "secret1"})

	rr := httptest.NewRecorder()
	env.h.Session(rr, httptest.NewRequest(http.MethodGet, "/api/admin/session", nil))
	assert.Equal(t, true, decode(t, rr)["session"].(map[string]any)["authenticated"])

	for i := 0; i < 2; i++ {
		rr = httptest.NewRecorder()
		env.h.Logout(rr, httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, authenticated(t, env))
	}

	rr = httptest.NewRecorder()
	env.h.Session(rr, httptest.NewRequest(http.MethodGet, "/api/admin/session", nil))
	assert.Equal(t, false, decode(t, rr)["session"].(map[string]any)["authenticated"])
}

func TestForgotPassword(t *testing.T) {
	t.Run("wrong identity", func(t *testing.T) {
		env := newTestEnv(t)
		rr := sendJSON(env.h.ForgotPassword, http.MethodPost, "/api/admin/password/forgot", map[string]string{"email": "someone@example.com"})
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Empty(t, env.sender.links)
	})

	t.Run("sends link without exposing token", func(t *testing.T) {
		env := newTestEnv(t)
		rr := sendJSON(env.h.ForgotPassword, http.MethodPost, "/api/admin/password/forgot", map[string]string{"email": adminEmail})
		assert.Equal(t, http.StatusAccepted, rr.Code)

		tok := env.sender.lastToken(t)
		assert.NotEmpty(t, tok)
		assert.NotContains(t, rr.Body.String(), tok)
	})

	t.Run("delivery failure reported distinctly", func(t *testing.T) {
		env := newTestEnv(t)
		env.sender.err = errors.New("smtp down")
		rr := sendJSON(env.h.ForgotPassword, http.MethodPost, "/api/admin/password/forgot", map[string]string{"email": adminEmail})
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Equal(t, msgDeliveryFailed, decode(t, rr)["error"])
	})

	t.Run("store failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.Fail(errors.New("connection refused"))
		rr := sendJSON(env.h.ForgotPassword, http.MethodPost, "/api/admin/password/forgot", map[string]string{"email": adminEmail})
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("unexpected failure", func(t *testing.T) {
		env := newTestEnv(t, account.WithTokenSource(func() (string, error) {
			return "", errors.New("entropy exhausted")
		}))
		rr := sendJSON(env.h.ForgotPassword, http.MethodPost, "/api/admin/password/forgot", map[string]string{"email": adminEmail})
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "entropy")
		assert.Empty(t, env.sender.links)
	})
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	sendJSON(env.h.Login, http.MethodPost, "/api/admin/login", map[string]string{"password": "secret1"})
	sendJSON(env.h.ForgotPassword, http.MethodPost, "/api/admin/password/forgot", map[string]string{"email": adminEmail})
	tok := env.sender.lastToken(t)

	rr := httptest.NewRecorder()
	env.h.ValidateResetToken(rr, httptest.NewRequest(http.MethodGet, "/api/admin/password/reset?token="+tok, nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	env.h.ValidateResetToken(rr, httptest.NewRequest(http.MethodGet, "/api/admin/password/reset?token="+tok+"x", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgInvalidToken, decode(t, rr)["error"])

	cases := []struct {
		name    string
		body    map[string]string
		want    int
		message string
	}{
		{"mismatch", map[string]string{"token": tok, "password": "secret2", "confirmPassword": "secret3"}, http.StatusBadRequest, msgPasswordMismatch},
		{"too short", map[string]string{"token": tok, "password": "abc", "confirmPassword": "abc"}, http.StatusBadRequest, "password must be at least 6 characters"},
		{"bad token", map[string]string{"token": "nope", "password": "secret2", "confirmPassword": "secret2"}, http.StatusBadRequest, msgInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := sendJSON(env.h.ResetPassword, http.MethodPost, "/api/admin/password/reset", tc.body)
			assert.Equal(t, tc.want, rr.Code)
			assert.Equal(t, tc.message, decode(t, rr)["error"])
		})
	}

	body := map[string]string{"token": tok, "password": "secret2", "confirmPassword": "secret2"}
	rr = sendJSON(env.h.ResetPassword, http.MethodPost, "/api/admin/password/reset", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.False(t, authenticated(t, env), "reset logs the admin out")

	rr = sendJSON(env.h.ResetPassword, http.MethodPost, "/api/admin/password/reset", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "token is single use")

	rr = sendJSON(env.h.Login, http.MethodPost, "/api/admin/login", map[string]string{"password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = sendJSON(env.h.Login, http.MethodPost, "/api/admin/login", map[string]string{"password": "secret2"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealth(t *testing.T) {
	mem := store.NewMemoryStore()
	h := Health(mem)

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	mem.Fail(errors.New("down"))
	rr = httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "degraded")
}
