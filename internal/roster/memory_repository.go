package roster

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryRepository returns a roster backed by entries.
func NewMemoryRepository(entries ...Entry) Repository {
	return &memoryRepository{entries: append([]Entry(nil), entries...)}
}

func (r *memoryRepository) FindByCredentials(_ context.Context, creds Credentials) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Name == creds.Name && e.Department == creds.Department && e.EmployeeID == creds.EmployeeID {
			return e, nil
		}
	}
	return Entry{}, ErrInvalidCredentials
}

// DevEntries seeds the development roster.
func DevEntries() []Entry {
	return []Entry{
		{ID: "emp-rev-001", Name: "Rajesh Kumar", Department: "Revenue", EmployeeID: "REV001", PhoneNumber: "+919900000001", District: "Hyderabad", Mandal: "Secunderabad", Village: "Village1"},
		{ID: "emp-hlt-014", Name: "Lakshmi Devi", Department: "Health", EmployeeID: "HLT014", PhoneNumber: "+919900000002", District: "Warangal", Mandal: "Hanamkonda"},
		{ID: "emp-edu-007", Name: "Srinivas Rao", Department: "Education", EmployeeID: "EDU007", District: "Karimnagar"},
	}
}
