package messages

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records []Message
	now     func() time.Time
}

// NewMemoryRepository builds an in-memory message store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{now: time.Now}
}

func (r *memoryRepository) Insert(_ context.Context, m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.NewString()
	m.CreatedAt = r.now().UTC()
	m.TargetRoles = slices.Clone(m.TargetRoles)
	r.records = append(r.records, m)
	return m, nil
}

func (r *memoryRepository) ListFor(_ context.Context, a Audience) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Message
	for _, m := range r.records {
		if m.Reaches(a.Role, a.District, a.Mandal, a.Village) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
