package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ayush/registration-service/internal/identity"
	"github.com/ayush/registration-service/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                  TEXT PRIMARY KEY,
	username            TEXT NOT NULL,
	normalized_username TEXT NOT NULL UNIQUE,
	email               TEXT NOT NULL,
	normalized_email    TEXT NOT NULL,
	password_hash       TEXT NOT NULL,
	created_at          DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS accounts_normalized_email_idx ON accounts (normalized_email);
`

// SQLiteStore handles account persistence in a single SQLite file. It suits
// single-node deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path with WAL
// journaling and a busy timeout so concurrent writers queue instead of
// failing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// Migrate creates the accounts table if it doesn't exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindByNormalizedUsername(ctx context.Context, normalized string) (*models.Account, error) {
	var a models.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, normalized_username, email, normalized_email, password_hash, created_at
		 FROM accounts WHERE normalized_username = ?`, normalized,
	).Scan(&a.ID, &a.Username, &a.NormalizedUsername, &a.Email, &a.NormalizedEmail, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite select account: %w", err)
	}
	return &a, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, a *models.Account) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, normalized_username, email, normalized_email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (normalized_username) DO NOTHING`,
		id, a.Username, a.NormalizedUsername, a.Email, a.NormalizedEmail, a.PasswordHash, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite insert account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite insert account: %w", err)
	}
	if n == 0 {
		return identity.ErrDuplicateUsername
	}
	a.ID = id
	a.CreatedAt = now
	return nil
}
