// Package profile completes a verified phone into a citizen or official identity.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/location"
	"github.com/nagarika-mitra/nagarika_mitra/internal/metrics"
	"github.com/nagarika-mitra/nagarika_mitra/internal/otp"
	"github.com/nagarika-mitra/nagarika_mitra/internal/phone"
	"github.com/nagarika-mitra/nagarika_mitra/internal/roster"
	"github.com/nagarika-mitra/nagarika_mitra/internal/validation"
)

const (
	MinAge = 1
	MaxAge = 120
)

// Binder promotes a session to hold an identity (session.Store.Login).
type Binder interface {
	Login(ctx context.Context, id identity.Identity) (identity.Identity, error)
}

// CitizenForm is the citizen sub-flow input.
type CitizenForm struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
	Locality string `json:"locality"`
	District string `json:"district"`
	Mandal   string `json:"mandal"`
	Village  string `json:"village"`
}

// OfficialForm is the official sub-flow input.
type OfficialForm struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	EmployeeID string `json:"employee_id"`
}

// Service runs both sub-flows.
type Service struct {
	locations *location.Source
	roster    *roster.Service
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(locations *location.Source, rosterSvc *roster.Service, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{locations: locations, roster: rosterSvc, metrics: m, logger: logger}
}

// CompleteCitizen validates form in full, then persists the citizen through
// the binder. No persistence call is made when any field is invalid.
func (s *Service) CompleteCitizen(ctx context.Context, b Binder, v otp.Verified, form CitizenForm) (*identity.Citizen, error) {
	if !phone.Valid(v.Phone) {
		return nil, fmt.Errorf("%w: verified phone %q", otp.ErrInvalidFormat, phone.Mask(v.Phone))
	}
	form = trimCitizen(form)
	var errs validation.Errors
	if form.Name == "" {
		errs.Add("name", "is required")
	}
	if form.Age < MinAge || form.Age > MaxAge {
		errs.Add("age", fmt.Sprintf("must be between %d and %d", MinAge, MaxAge))
	}
	gender := identity.Gender(strings.ToLower(form.Gender))
	if !gender.Valid() {
		errs.Add("gender", "must be male, female or other")
	}

	r, err := s.locations.Resolver(ctx)
	if err != nil {
		s.metrics.ProfileCompleted(string(identity.RoleCitizen), "failed")
		if len(errs) > 0 {
			return nil, fmt.Errorf("%w: %w", err, errs)
		}
		return nil, err
	}
	location.Selection{District: form.District, Mandal: form.Mandal, Village: form.Village}.Validate(r, true, &errs)
	if err := errs.Err(); err != nil {
		s.metrics.ProfileCompleted(string(identity.RoleCitizen), "invalid")
		return nil, err
	}

	bound, err := b.Login(ctx, &identity.Citizen{
		Name:        form.Name,
		Age:         form.Age,
		Gender:      gender,
		PhoneNumber: v.Phone,
		Locality:    form.Locality,
		District:    form.District,
		Mandal:      form.Mandal,
		Village:     form.Village,
	})
	if err != nil {
		s.metrics.ProfileCompleted(string(identity.RoleCitizen), "failed")
		return nil, err
	}
	s.metrics.ProfileCompleted(string(identity.RoleCitizen), "ok")
	s.logger.Info("citizen profile completed", slog.String("phone", phone.Mask(v.Phone)), slog.String("district", form.District))
	return bound.(*identity.Citizen), nil
}

// CompleteOfficial checks the roster for the exact triple and binds an
// official identity built from the roster row and the verified phone.
// Officials are never written to the citizen table.
func (s *Service) CompleteOfficial(ctx context.Context, b Binder, v otp.Verified, form OfficialForm) (*identity.Official, error) {
	if !phone.Valid(v.Phone) {
		return nil, fmt.Errorf("%w: verified phone %q", otp.ErrInvalidFormat, phone.Mask(v.Phone))
	}
	creds := roster.Credentials{
		Name:       strings.TrimSpace(form.Name),
		Department: strings.TrimSpace(form.Department),
		EmployeeID: strings.TrimSpace(form.EmployeeID),
	}
	var errs validation.Errors
	if creds.Name == "" {
		errs.Add("name", "is required")
	}
	if creds.Department == "" {
		errs.Add("department", "is required")
	}
	if creds.EmployeeID == "" {
		errs.Add("employee_id", "is required")
	}
	if err := errs.Err(); err != nil {
		s.metrics.ProfileCompleted(string(identity.RoleOfficial), "invalid")
		return nil, err
	}

	entry, err := s.roster.Lookup(ctx, creds)
	if err != nil {
		s.metrics.ProfileCompleted(string(identity.RoleOfficial), "rejected")
		return nil, err
	}

	bound, err := b.Login(ctx, &identity.Official{
		ID:          entry.ID,
		Name:        entry.Name,
		Department:  entry.Department,
		EmployeeID:  entry.EmployeeID,
		PhoneNumber: v.Phone,
		District:    entry.District,
		Mandal:      entry.Mandal,
		Village:     entry.Village,
	})
	if err != nil {
		s.metrics.ProfileCompleted(string(identity.RoleOfficial), "failed")
		return nil, err
	}
	s.metrics.ProfileCompleted(string(identity.RoleOfficial), "ok")
	s.logger.Info("official signed in", slog.String("employee_id", entry.EmployeeID), slog.String("department", entry.Department))
	return bound.(*identity.Official), nil
}

func trimCitizen(f CitizenForm) CitizenForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Gender = strings.TrimSpace(f.Gender)
	f.Locality = strings.TrimSpace(f.Locality)
	f.District = strings.TrimSpace(f.District)
	f.Mandal = strings.TrimSpace(f.Mandal)
	f.Village = strings.TrimSpace(f.Village)
	return f
}
