// Package identity is the user directory: it owns account lookup, the
// username and password policies, credential hashing and persistence through
// an AccountStore.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ayush/registration-service/internal/models"
)

// ErrDuplicateUsername is returned by AccountStore.Insert when an account
// with the same normalized username already exists.
var ErrDuplicateUsername = errors.New("identity: duplicate username")

// AccountStore persists accounts. Insert must be an atomic conditional
// insert: of two concurrent inserts for one normalized username, exactly one
// succeeds and the other returns ErrDuplicateUsername.
type AccountStore interface {
	FindByNormalizedUsername(ctx context.Context, normalized string) (*models.Account, error)
	Insert(ctx context.Context, account *models.Account) error
}

// Manager implements the directory operations on top of an AccountStore.
type Manager struct {
	store    AccountStore
	hasher   *Hasher
	users    UserPolicy
	password PasswordPolicy
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

func WithPasswordPolicy(p PasswordPolicy) Option {
	return func(m *Manager) { m.password = p }
}

func WithUserPolicy(p UserPolicy) Option {
	return func(m *Manager) { m.users = p }
}

func WithHasher(h *Hasher) Option {
	return func(m *Manager) { m.hasher = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(store AccountStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		hasher:   NewHasher(0),
		users:    DefaultUserPolicy(),
		password: DefaultPasswordPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindByUsername returns the account for username, or nil when none exists.
func (m *Manager) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	acct, err := m.store.FindByNormalizedUsername(ctx, Normalize(username))
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return acct, nil
}

// CreateAccount checks account and password against the directory policies,
// hashes the password and stores the account. Policy violations and
// username collisions come back in the Result; the error is reserved for
// failures of the directory itself.
func (m *Manager) CreateAccount(ctx context.Context, account *models.Account, password string) (Result, error) {
	errs := m.users.Check(account.Username, account.Email)
	errs = append(errs, m.password.Check(password)...)
	if len(errs) > 0 {
		return Failed(errs...), nil
	}

	hashed, err := m.hasher.Hash(password)
	if err != nil {
		return Result{}, err
	}

	account.NormalizedUsername = Normalize(account.Username)
	account.NormalizedEmail = Normalize(account.Email)
	account.PasswordHash = hashed

	if err := m.store.Insert(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			m.logger.Debug("account insert lost uniqueness race", "username", account.Username)
			return Failed(duplicateUserName(account.Username)), nil
		}
		return Result{}, fmt.Errorf("create account: %w", err)
	}
	return Success(), nil
}
