package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryUserRepository struct {
	mu      sync.Mutex
	byPhone map[string]User
}

// NewMemoryUserRepository returns an in-memory UserRepository for development and tests.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{byPhone: make(map[string]User)}
}

func (r *memoryUserRepository) EnsureByPhone(_ context.Context, phone string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byPhone[phone]; ok {
		return u, nil
	}
	u := User{ID: uuid.NewString(), Phone: phone, CreatedAt: time.Now().UTC()}
	r.byPhone[phone] = u
	return u, nil
}
