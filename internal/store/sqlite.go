package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/efleague/admin/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the admin record in a SQLite database. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn and migrates its schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One writer at a time, otherwise concurrent requests hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrateSQLiteUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, email string) (model.AdminAccount, error) {
	var (
		acct                           model.AdminAccount
		token                          sql.NullString
		expires, lastLogin, lastLogout sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT email, password_hash, is_authenticated, reset_token, reset_expires, last_login, last_logout
		FROM admin_auth
		WHERE email = ?`, email,
	).Scan(&acct.Email, &acct.PasswordHash, &acct.IsAuthenticated, &token, &expires, &lastLogin, &lastLogout)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AdminAccount{}, ErrNotFound
	} else if err != nil {
		return model.AdminAccount{}, err
	}

	acct.ResetToken = token.String
	acct.ResetExpiresAt = fromMillis(expires)
	acct.LastLogin = fromMillis(lastLogin)
	acct.LastLogout = fromMillis(lastLogout)
	return acct, nil
}

func (s *SQLiteStore) Update(ctx context.Context, email string, p Patch) error {
	if err := p.validate(); err != nil {
		return err
	}
	query, args := buildUpdate(email, p, sqlitePlaceholder, sqliteTime)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	exists, err := s.Exists(ctx, email)
	if err != nil {
		return err
	}
	return explainMiss(exists, p)
}

func (s *SQLiteStore) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM admin_auth WHERE email = ?)`, email,
	).Scan(&exists)
	return exists, err
}

func (s *SQLiteStore) Create(ctx context.Context, email, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO admin_auth (email, password_hash) VALUES (?, ?)`,
		email, passwordHash)
	return err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlitePlaceholder(n int) string {
	return "?" + strconv.Itoa(n)
}

func sqliteTime(t time.Time) any {
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
