// Package account owns the single admin record: login, logout and the
// password reset token lifecycle.
//
// The session is one persisted flag, so it survives restarts and is shared by
// every browser. A reset token is pending while the record carries both a
// token and an expiry; it stops being usable once the expiry passes, which is
// only observed when a token is validated.
//
// Concurrent writers are not coordinated beyond the store's last write wins,
// except that a password reset only applies if the stored token is still the
// one that was validated.
package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/efleague/admin/internal/auth"
	"github.com/efleague/admin/internal/model"
	"github.com/efleague/admin/internal/store"
)

const (
	DefaultTokenTTL          = time.Hour
	DefaultMinPasswordLength = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

// RecordStore reads and patches the admin record.
type RecordStore interface {
	Get(ctx context.Context, email string) (model.AdminAccount, error)
	Update(ctx context.Context, email string, p store.Patch) error
}

// ResetSender delivers a reset link out of band.
type ResetSender interface {
	SendPasswordReset(ctx context.Context, to, link string, expiresAt time.Time) error
}

type Config struct {
	// AdminEmail is the one identity allowed to log in and reset.
	AdminEmail string
	// ResetBaseURL is the page that accepts reset_token and email query
	// parameters.
	ResetBaseURL      string
	TokenTTL          time.Duration
	MinPasswordLength int
}

// Service is the admin credential store.
type Service struct {
	records  RecordStore
	sender   ResetSender
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	newToken func() (string, error)
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenSource replaces the reset token generator.
func WithTokenSource(gen func() (string, error)) Option {
	return func(s *Service) { s.newToken = gen }
}

// NewService creates the credential store. records and sender are required.
func NewService(log *slog.Logger, records RecordStore, sender ResetSender, cfg Config, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, errors.New("account: record store is required")
	}
	if sender == nil {
		return nil, errors.New("account: reset sender is required")
	}
	if cfg.AdminEmail == "" {
		return nil, errors.New("account: admin email is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	if _, err := url.Parse(cfg.ResetBaseURL); err != nil {
		return nil, fmt.Errorf("account: reset base url: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		records:  records,
		sender:   sender,
		cfg:      cfg,
		logger:   log.With(slog.String("service", "account")),
		now:      time.Now,
		newToken: auth.GenerateToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Status returns the persisted session state.
func (s *Service) Status(ctx context.Context) (model.Session, error) {
	acct, err := s.load(ctx)
	if err != nil {
		return model.Session{}, err
	}
	return acct.Session(), nil
}

// Authenticate checks password against the stored digest. On a match the
// session is marked authenticated and the login time recorded; otherwise
// nothing is written.
func (s *Service) Authenticate(ctx context.Context, password string) (model.Session, error) {
	acct, err := s.load(ctx)
	if err != nil {
		return model.Session{}, err
	}
	if acct.PasswordHash == "" {
		s.logger.Error("admin record has no password hash", "email", s.cfg.AdminEmail)
		return acct.Session(), ErrNotFound
	}
	if !auth.Verify(acct.PasswordHash, password) {
		return acct.Session(), ErrUnauthorized
	}

	now := s.now().UTC()
	err = s.records.Update(ctx, s.cfg.AdminEmail, store.Patch{
		IsAuthenticated: boolPtr(true),
		LastLogin:       &now,
	})
	if err != nil {
		s.logger.Error("record login failed", "err", err)
		return acct.Session(), classify(err)
	}

	s.logger.Info("admin logged in")
	return model.Session{Authenticated: true, LastLogin: &now, LastLogout: acct.LastLogout}, nil
}

// TerminateSession logs the admin out. It never fails: a store error is
// logged and the caller still gets a logged-out session.
func (s *Service) TerminateSession(ctx context.Context) model.Session {
	now := s.now().UTC()
	err := s.records.Update(ctx, s.cfg.AdminEmail, store.Patch{
		IsAuthenticated: boolPtr(false),
		LastLogout:      &now,
	})
	if err != nil {
		s.logger.Error("record logout failed", "err", err)
	} else {
		s.logger.Info("admin logged out")
	}
	return model.Session{Authenticated: false, LastLogout: &now}
}

// RequestReset issues a reset token for identity, replacing any pending one.
// Only the configured admin identity may request a reset.
func (s *Service) RequestReset(ctx context.Context, identity string) (model.ResetToken, error) {
	if identity == "" || identity != s.cfg.AdminEmail {
		s.logger.Warn("reset requested for unknown identity")
		return model.ResetToken{}, ErrUnauthorized
	}

	value, err := s.newToken()
	if err != nil {
		return model.ResetToken{}, fmt.Errorf("generate reset token: %w", err)
	}
	// Stores keep milliseconds at best; the caller gets the expiry as stored.
	tok := model.ResetToken{
		Value:     value,
		ExpiresAt: s.now().UTC().Add(s.cfg.TokenTTL).Truncate(time.Millisecond),
	}

	if err := s.records.Update(ctx, s.cfg.AdminEmail, store.Patch{Reset: &tok}); err != nil {
		s.logger.Error("save reset token failed", "err", err)
		return model.ResetToken{}, classify(err)
	}

	s.logger.Info("reset token issued", "expires_at", tok.ExpiresAt.Format(time.RFC3339))
	return tok, nil
}

// SendResetLink issues a reset token and hands the reset link to the sender.
// When delivery fails the token stays issued and the returned error wraps
// ErrDelivery.
func (s *Service) SendResetLink(ctx context.Context, identity string) (model.ResetToken, error) {
	tok, err := s.RequestReset(ctx, identity)
	if err != nil {
		return model.ResetToken{}, err
	}

	link, err := s.resetLink(tok.Value, identity)
	if err != nil {
		return tok, fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	if err := s.sender.SendPasswordReset(ctx, identity, link, tok.ExpiresAt); err != nil {
		s.logger.Error("reset link delivery failed", "to", identity, "err", err)
		return tok, fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	s.logger.Info("reset link sent", "to", identity)
	return tok, nil
}

// ValidateToken reports whether candidate is the pending reset token and has
// not expired. A token is still valid at exactly its expiry time.
func (s *Service) ValidateToken(ctx context.Context, candidate string) error {
	acct, err := s.load(ctx)
	if err != nil {
		return err
	}
	return s.check(acct, candidate)
}

func (s *Service) check(acct model.AdminAccount, candidate string) error {
	if candidate == "" || !acct.HasPendingReset() {
		return ErrInvalid
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(acct.ResetToken)) != 1 {
		return ErrInvalid
	}
	if s.now().After(*acct.ResetExpiresAt) {
		return ErrExpired
	}
	return nil
}

// ConsumeTokenAndResetPassword replaces the password if candidate is valid.
// The new digest, the cleared token and the forced logout are written in one
// update, and only if the token was not replaced in the meantime.
func (s *Service) ConsumeTokenAndResetPassword(ctx context.Context, candidate, newPassword string) error {
	if err := s.ValidateToken(ctx, candidate); err != nil {
		return err
	}
	if err := s.checkPolicy(newPassword); err != nil {
		return err
	}

	hash, err := auth.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.records.Update(ctx, s.cfg.AdminEmail, store.Patch{
		PasswordHash:    &hash,
		IsAuthenticated: boolPtr(false),
		ClearReset:      true,
		IfResetToken:    &candidate,
	})
	if errors.Is(err, store.ErrConflict) {
		s.logger.Warn("reset token replaced before it was consumed")
		return ErrInvalid
	} else if err != nil {
		s.logger.Error("password reset failed", "err", err)
		return classify(err)
	}

	s.logger.Info("admin password reset")
	return nil
}

func (s *Service) checkPolicy(password string) error {
	if len([]rune(password)) < s.cfg.MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, s.cfg.MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: must be at most %d bytes", ErrWeakPassword, maxPasswordBytes)
	}
	return nil
}

// MinPasswordLength is the shortest password a reset accepts.
func (s *Service) MinPasswordLength() int {
	return s.cfg.MinPasswordLength
}

func (s *Service) load(ctx context.Context) (model.AdminAccount, error) {
	acct, err := s.records.Get(ctx, s.cfg.AdminEmail)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Error("admin record missing", "email", s.cfg.AdminEmail)
		return model.AdminAccount{}, ErrNotFound
	} else if err != nil {
		s.logger.Error("load admin record failed", "err", err)
		return model.AdminAccount{}, classify(err)
	}
	return acct, nil
}

func (s *Service) resetLink(token, email string) (string, error) {
	u, err := url.Parse(s.cfg.ResetBaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("reset_token", token)
	q.Set("email", email)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// classify maps a store error onto the package's failure classes.
func classify(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrInvalid
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
