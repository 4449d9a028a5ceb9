package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]Citizen
}

// NewMemoryRepository builds an in-memory citizen store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]Citizen)}
}

func (r *memoryRepository) UpsertCitizen(_ context.Context, c Citizen) (Citizen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.users[c.AuthUserID]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else {
		c.ID = uuid.NewString()
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.users[c.AuthUserID] = c
	return c, nil
}

func (r *memoryRepository) FindCitizenByAuthUserID(_ context.Context, authUserID string) (Citizen, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.users[authUserID]
	if !ok {
		return Citizen{}, ErrNotFound
	}
	return c, nil
}
