package feedback

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records []Feedback
	now     func() time.Time
}

// NewMemoryRepository builds an in-memory feedback store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{now: time.Now}
}

func (r *memoryRepository) Insert(_ context.Context, f Feedback) (Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	f.ID = uuid.NewString()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = f.CreatedAt
	r.records = append(r.records, f)
	return f, nil
}

func (r *memoryRepository) Find(_ context.Context, q Query) ([]Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(q.Search)
	var out []Feedback
	for _, f := range r.records {
		if q.UserID != "" && f.UserID != q.UserID ||
			q.District != "" && f.District != q.District ||
			q.Mandal != "" && f.Mandal != q.Mandal ||
			q.Village != "" && f.Village != q.Village ||
			q.ServiceType != "" && f.ServiceType != q.ServiceType ||
			q.MinRating > 0 && f.Rating < q.MinRating ||
			q.MaxRating > 0 && f.Rating > q.MaxRating {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(f.Text), search) &&
			!strings.Contains(strings.ToLower(f.Title), search) &&
			!strings.Contains(strings.ToLower(f.ServiceType), search) {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
