package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/efleague/admin/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the admin record in the admin_auth table of a
// Postgres database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres migrates the schema and connects a pool.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if err := Migrate(nil, databaseURL, "up", nil); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(pool), nil
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, email string) (model.AdminAccount, error) {
	var (
		acct  model.AdminAccount
		token *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT email, password_hash, is_authenticated, reset_token, reset_expires, last_login, last_logout
		FROM admin_auth
		WHERE email = $1`, email,
	).Scan(&acct.Email, &acct.PasswordHash, &acct.IsAuthenticated, &token, &acct.ResetExpiresAt, &acct.LastLogin, &acct.LastLogout)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AdminAccount{}, ErrNotFound
	} else if err != nil {
		return model.AdminAccount{}, err
	}
	if token != nil {
		acct.ResetToken = *token
	}
	return acct, nil
}

func (s *PostgresStore) Update(ctx context.Context, email string, p Patch) error {
	if err := p.validate(); err != nil {
		return err
	}
	query, args := buildUpdate(email, p, pgPlaceholder, pgTime)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return s.missReason(ctx, email, p)
}

// missReason explains an update that matched no rows.
func (s *PostgresStore) missReason(ctx context.Context, email string, p Patch) error {
	exists, err := s.Exists(ctx, email)
	if err != nil {
		return err
	}
	return explainMiss(exists, p)
}

func (s *PostgresStore) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM admin_auth WHERE email = $1)`, email,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) Create(ctx context.Context, email, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_auth (email, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING`, email, passwordHash)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func pgTime(t time.Time) any {
	return t.UTC()
}
