package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/efleague/admin/internal/model"
)

var (
	// ErrNotFound is returned when the admin record does not exist.
	ErrNotFound = errors.New("store: admin record not found")
	// ErrConflict is returned when a guarded update finds a different reset
	// token than the one it was conditioned on.
	ErrConflict = errors.New("store: reset token changed")
	// ErrNoRowsMatched is an unguarded update that touched nothing although
	// the record exists.
	ErrNoRowsMatched = errors.New("store: update matched no rows")
)

// Patch describes a field-wise update of the admin record. Unset fields are
// left alone. All set fields are written in a single statement.
type Patch struct {
	PasswordHash    *string
	IsAuthenticated *bool
	LastLogin       *time.Time
	LastLogout      *time.Time

	// Reset sets reset_token and reset_expires together.
	Reset *model.ResetToken
	// ClearReset clears reset_token and reset_expires together.
	ClearReset bool

	// IfResetToken makes the update conditional on the stored token.
	IfResetToken *string
}

func (p Patch) empty() bool {
	return p.PasswordHash == nil && p.IsAuthenticated == nil &&
		p.LastLogin == nil && p.LastLogout == nil &&
		p.Reset == nil && !p.ClearReset
}

func (p Patch) validate() error {
	if p.empty() {
		return errors.New("store: empty patch")
	}
	if p.Reset != nil && p.ClearReset {
		return errors.New("store: patch both sets and clears reset token")
	}
	if p.Reset != nil && p.Reset.Value == "" {
		return errors.New("store: patch sets an empty reset token")
	}
	return nil
}

// Store is a backend holding the admin record.
type Store interface {
	Get(ctx context.Context, email string) (model.AdminAccount, error)
	Update(ctx context.Context, email string, p Patch) error
	Exists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, email, passwordHash string) error
	Ping(ctx context.Context) error
	Close() error
}

// Open selects a backend from the database URL and brings its schema up to
// date. "postgres://" and "postgresql://" URLs use Postgres, "memory:" keeps
// the record in process, anything else is treated as a SQLite DSN.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case isPostgres(databaseURL):
		return OpenPostgres(ctx, databaseURL)
	case databaseURL == "memory:":
		slog.Warn("store: using in-memory admin record, state is lost on restart")
		return NewMemoryStore(), nil
	default:
		return OpenSQLite(ctx, databaseURL)
	}
}

func isPostgres(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}

// timeCodec converts times to the value a dialect stores.
type timeCodec func(t time.Time) any

// buildUpdate renders the UPDATE statement for p. placeholder renders the
// n-th (1-based) bind parameter. Arguments are appended in the order their
// placeholders appear, so positional "?" binding lines up as well as "$n".
func buildUpdate(email string, p Patch, placeholder func(n int) string, encode timeCodec) (string, []any) {
	var (
		args []any
		sets []string
	)
	bind := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	set := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = %s", col, bind(v)))
	}

	if p.PasswordHash != nil {
		set("password_hash", *p.PasswordHash)
	}
	if p.IsAuthenticated != nil {
		set("is_authenticated", *p.IsAuthenticated)
	}
	if p.LastLogin != nil {
		set("last_login", encode(*p.LastLogin))
	}
	if p.LastLogout != nil {
		set("last_logout", encode(*p.LastLogout))
	}
	switch {
	case p.Reset != nil:
		set("reset_token", p.Reset.Value)
		set("reset_expires", encode(p.Reset.ExpiresAt))
	case p.ClearReset:
		sets = append(sets, "reset_token = NULL", "reset_expires = NULL")
	}

	query := fmt.Sprintf("UPDATE admin_auth SET %s WHERE email = %s", strings.Join(sets, ", "), bind(email))
	if p.IfResetToken != nil {
		query += fmt.Sprintf(" AND reset_token = %s", bind(*p.IfResetToken))
	}
	return query, args
}

// explainMiss reports why an update on email matched no rows.
func explainMiss(exists bool, p Patch) error {
	switch {
	case !exists:
		return ErrNotFound
	case p.IfResetToken != nil:
		return ErrConflict
	default:
		return ErrNoRowsMatched
	}
}
