package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/efleague/admin/internal/account"
	appmw "github.com/efleague/admin/internal/middleware"
	"github.com/efleague/admin/internal/model"
)

// Client-facing failure messages. Credential and token failures share one
// message each so callers cannot tell a missing record from a wrong value.
const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidToken       = "invalid or expired reset token"
	msgNotAdminEmail      = "only the admin email can request password resets"
	msgResetUnavailable   = "password reset is unavailable, try again later"
	msgDeliveryFailed     = "reset link could not be delivered"
	msgPasswordMismatch   = "passwords do not match"
)

type credentialService interface {
	Status(ctx context.Context) (model.Session, error)
	Authenticate(ctx context.Context, password string) (model.Session, error)
	TerminateSession(ctx context.Context) model.Session
	SendResetLink(ctx context.Context, identity string) (model.ResetToken, error)
	ValidateToken(ctx context.Context, candidate string) error
	ConsumeTokenAndResetPassword(ctx context.Context, candidate, newPassword string) error
	MinPasswordLength() int
}

// AuthHandler handles admin authentication and password resets.
type AuthHandler struct {
	BaseHandler
	accounts credentialService
}

func NewAuthHandler(logger *slog.Logger, accounts credentialService) *AuthHandler {
	return &AuthHandler{BaseHandler: BaseHandler{Logger: logger}, accounts: accounts}
}

// Session reports whether the admin is logged in. A failed lookup reads as
// logged out.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.accounts.Status(r.Context())
	if err != nil {
		h.Logger.Warn("auth: session lookup failed", "err", err)
		sess = model.Session{}
	}
	if err := h.writeJSON(w, http.StatusOK, envelope{"session": sess}, nil); err != nil {
		h.logError(r, err)
	}
}

// Login checks the admin password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Password string `json:"password"`
	}
	if err := h.readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	sess, err := h.accounts.Authenticate(r.Context(), input.Password)
	if err != nil {
		if !errors.Is(err, account.ErrUnauthorized) {
			h.Logger.Error("auth: login failed", "err", err)
		}
		h.errorResponse(w, r, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	if err := h.writeJSON(w, http.StatusOK, envelope{"session": sess}, nil); err != nil {
		h.logError(r, err)
	}
}

// Logout ends the admin session. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := h.accounts.TerminateSession(r.Context())
	if err := h.writeJSON(w, http.StatusOK, envelope{"session": sess}, nil); err != nil {
		h.logError(r, err)
	}
}

// ForgotPassword issues a reset token and emails the reset link.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := h.readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	tok, err := h.accounts.SendResetLink(r.Context(), input.Email)
	switch {
	case err == nil:
		err = h.writeJSON(w, http.StatusAccepted, envelope{
			"message":   "password reset link has been sent",
			"expiresAt": tok.ExpiresAt,
		}, nil)
		if err != nil {
			h.logError(r, err)
		}
	case errors.Is(err, account.ErrUnauthorized):
		h.errorResponse(w, r, http.StatusForbidden, msgNotAdminEmail)
	case errors.Is(err, account.ErrDelivery):
		h.errorResponse(w, r, http.StatusBadGateway, msgDeliveryFailed)
	case errors.Is(err, account.ErrTransport), errors.Is(err, account.ErrNotFound):
		h.Logger.Error("auth: reset request failed", "err", err)
		h.errorResponse(w, r, http.StatusServiceUnavailable, msgResetUnavailable)
	default:
		h.serverErrorResponse(w, r, err)
	}
}

// ValidateResetToken lets the reset page check a token before asking for a
// new password.
func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := h.accounts.ValidateToken(r.Context(), token); err != nil {
		h.logTokenFailure(err)
		h.errorResponse(w, r, http.StatusBadRequest, msgInvalidToken)
		return
	}
	if err := h.writeJSON(w, http.StatusOK, envelope{"valid": true}, nil); err != nil {
		h.logError(r, err)
	}
}

// ResetPassword consumes a reset token and sets a new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := h.readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	if input.Password != input.ConfirmPassword {
		h.errorResponse(w, r, http.StatusBadRequest, msgPasswordMismatch)
		return
	}

	err := h.accounts.ConsumeTokenAndResetPassword(r.Context(), input.Token, input.Password)
	switch {
	case err == nil:
		err = h.writeJSON(w, http.StatusOK, envelope{"message": "password reset successful, please log in"}, nil)
		if err != nil {
			h.logError(r, err)
		}
	case errors.Is(err, account.ErrWeakPassword):
		msg := fmt.Sprintf("password must be at least %d characters", h.accounts.MinPasswordLength())
		if len([]rune(input.Password)) >= h.accounts.MinPasswordLength() {
			msg = "password is too long"
		}
		h.errorResponse(w, r, http.StatusBadRequest, msg)
	default:
		h.logTokenFailure(err)
		h.errorResponse(w, r, http.StatusBadRequest, msgInvalidToken)
	}
}

// Dashboard returns the session the admin gate admitted.
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := appmw.SessionFromContext(r.Context())
	if err := h.writeJSON(w, http.StatusOK, envelope{"session": sess}, nil); err != nil {
		h.logError(r, err)
	}
}

func (h *AuthHandler) logTokenFailure(err error) {
	switch {
	case errors.Is(err, account.ErrInvalid), errors.Is(err, account.ErrExpired):
		h.Logger.Info("auth: reset token rejected", "reason", err)
	default:
		h.Logger.Error("auth: reset token check failed", "err", err)
	}
}
