package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/registration-service/internal/identity"
	"github.com/ayush/registration-service/internal/models"
)

// PostgresStore handles account persistence against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the accounts table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username            VARCHAR(256) NOT NULL,
			normalized_username VARCHAR(256) UNIQUE NOT NULL,
			email               VARCHAR(256) NOT NULL,
			normalized_email    VARCHAR(256) NOT NULL,
			password_hash       VARCHAR(255) NOT NULL,
			created_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS accounts_normalized_email_idx ON accounts (normalized_email);
	`)
	if err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByNormalizedUsername(ctx context.Context, normalized string) (*models.Account, error) {
	var a models.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, normalized_username, email, normalized_email, password_hash, created_at
		 FROM accounts WHERE normalized_username = $1`, normalized,
	).Scan(&a.ID, &a.Username, &a.NormalizedUsername, &a.Email, &a.NormalizedEmail, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	return &a, nil
}

// Insert adds the account unless the normalized username is taken. The
// conflict clause makes check and write a single statement.
func (s *PostgresStore) Insert(ctx context.Context, a *models.Account) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (username, normalized_username, email, normalized_email, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (normalized_username) DO NOTHING
		 RETURNING id, created_at`,
		a.Username, a.NormalizedUsername, a.Email, a.NormalizedEmail, a.PasswordHash,
	).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.ErrDuplicateUsername
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// Ping checks the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
