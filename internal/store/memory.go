package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/registration-service/internal/identity"
	"github.com/ayush/registration-service/internal/models"
)

// MemoryStore keeps accounts in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]models.Account)}
}

func (s *MemoryStore) FindByNormalizedUsername(_ context.Context, normalized string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[normalized]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *MemoryStore) Insert(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.NormalizedUsername]; ok {
		return identity.ErrDuplicateUsername
	}
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()
	s.accounts[a.NormalizedUsername] = *a
	return nil
}

// Len reports how many accounts are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
