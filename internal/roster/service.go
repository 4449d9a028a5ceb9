package roster

import (
	"context"
	"strings"
)

// Service validates official credentials against the roster.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Lookup trims surrounding whitespace and matches the exact triple; case is significant.
func (s *Service) Lookup(ctx context.Context, creds Credentials) (Entry, error) {
	creds = Credentials{
		Name:       strings.TrimSpace(creds.Name),
		Department: strings.TrimSpace(creds.Department),
		EmployeeID: strings.TrimSpace(creds.EmployeeID),
	}
	if creds.Name == "" || creds.Department == "" || creds.EmployeeID == "" {
		return Entry{}, ErrInvalidCredentials
	}
	return s.repo.FindByCredentials(ctx, creds)
}
