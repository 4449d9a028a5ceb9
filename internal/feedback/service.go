package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/location"
	"github.com/nagarika-mitra/nagarika_mitra/internal/metrics"
	"github.com/nagarika-mitra/nagarika_mitra/internal/notification"
	"github.com/nagarika-mitra/nagarika_mitra/internal/validation"
)

// Service handles citizen submissions and the official district views.
type Service struct {
	repo      Repository
	locations *location.Source
	publisher notification.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(repo Repository, locations *location.Source, publisher notification.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, locations: locations, publisher: publisher, metrics: m, logger: logger}
}

// Submit validates in and stores it with a snapshot of the citizen's location.
func (s *Service) Submit(ctx context.Context, citizen *identity.Citizen, in SubmitInput) (Feedback, error) {
	in.ServiceType = strings.TrimSpace(in.ServiceType)
	in.Text = strings.TrimSpace(in.Text)
	in.Title = strings.TrimSpace(in.Title)

	var errs validation.Errors
	if in.ServiceType == "" {
		errs.Add("service_type", "is required")
	}
	if in.Rating < MinRating || in.Rating > MaxRating {
		errs.Add("rating", fmt.Sprintf("must be between %d and %d", MinRating, MaxRating))
	}
	switch {
	case in.Text == "":
		errs.Add("feedback_text", "is required")
	case utf8.RuneCountInString(in.Text) < MinTextLength:
		errs.Add("feedback_text", fmt.Sprintf("must be at least %d characters", MinTextLength))
	}
	if err := errs.Err(); err != nil {
		return Feedback{}, err
	}

	f, err := s.repo.Insert(ctx, Feedback{
		UserID:          citizen.ID,
		ServiceType:     in.ServiceType,
		Rating:          in.Rating,
		Text:            in.Text,
		Title:           in.Title,
		Location:        strings.TrimSpace(in.Location),
		LocationDetails: strings.TrimSpace(in.LocationDetails),
		District:        citizen.District,
		Mandal:          citizen.Mandal,
		Village:         citizen.Village,
	})
	if err != nil {
		return Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	s.metrics.IncrementFeedback()
	s.publish(ctx, f)
	return f, nil
}

func (s *Service) publish(ctx context.Context, f Feedback) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, notification.Event{
		Table: notification.TableFeedback, Type: notification.TypeInsert, RecordID: f.ID,
		OwnerID: f.UserID, District: f.District, Mandal: f.Mandal, Village: f.Village, At: f.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("publish feedback event failed", slog.String("feedback_id", f.ID), slog.Any("error", err))
	}
}

// ListMine returns the citizen's own feedback, newest first.
func (s *Service) ListMine(ctx context.Context, citizen *identity.Citizen) ([]Feedback, error) {
	return s.repo.Find(ctx, Query{UserID: citizen.ID})
}

// ListNearby returns feedback from the citizen's district and mandal.
func (s *Service) ListNearby(ctx context.Context, citizen *identity.Citizen) ([]Feedback, error) {
	return s.repo.Find(ctx, Query{District: citizen.District, Mandal: citizen.Mandal, Limit: NearbyLimit})
}

// ListForDistrict returns feedback in the official's district narrowed by f.
// The mandal and village must belong to the district.
func (s *Service) ListForDistrict(ctx context.Context, official *identity.Official, f Filter) ([]Feedback, error) {
	if official.District == "" {
		return nil, ErrNoDistrict
	}
	minR, maxR, ok := f.Band.Bounds()
	var errs validation.Errors
	if !ok {
		errs.Add("rating", "must be low, medium or high")
	}
	if f.Mandal != "" || f.Village != "" {
		r, err := s.locations.Resolver(ctx)
		if err != nil {
			return nil, err
		}
		location.Selection{District: official.District, Mandal: f.Mandal, Village: f.Village}.Validate(r, false, &errs)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, Query{
		District:    official.District,
		Mandal:      f.Mandal,
		Village:     f.Village,
		ServiceType: strings.TrimSpace(f.ServiceType),
		MinRating:   minR,
		MaxRating:   maxR,
		Search:      strings.TrimSpace(f.Search),
	})
}

// Summary aggregates the district's feedback for the dashboard.
func (s *Service) Summary(ctx context.Context, district string) (Summary, error) {
	if district == "" {
		return Summary{}, ErrNoDistrict
	}
	records, err := s.repo.Find(ctx, Query{District: district})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(district, records), nil
}

// Summarize computes the dashboard aggregate over records.
func Summarize(district string, records []Feedback) Summary {
	sum := Summary{District: district, Total: len(records), Services: []Stat{}, LowestMandals: []Stat{}}
	if len(records) == 0 {
		sum.Status = StatusNoData
		return sum
	}

	type acc struct{ n, total int }
	services := map[string]*acc{}
	mandals := map[string]*acc{}
	all := 0
	for _, r := range records {
		all += r.Rating
		if services[r.ServiceType] == nil {
			services[r.ServiceType] = &acc{}
		}
		services[r.ServiceType].n++
		services[r.ServiceType].total += r.Rating
		if r.Mandal == "" {
			continue
		}
		if mandals[r.Mandal] == nil {
			mandals[r.Mandal] = &acc{}
		}
		mandals[r.Mandal].n++
		mandals[r.Mandal].total += r.Rating
	}

	toStats := func(m map[string]*acc) []Stat {
		out := make([]Stat, 0, len(m))
		for name, a := range m {
			out = append(out, Stat{Name: name, Count: a.n, Average: round2(float64(a.total) / float64(a.n))})
		}
		return out
	}

	sum.Average = round2(float64(all) / float64(len(records)))
	sum.Status = StatusFor(sum.Total, sum.Average)

	sum.Services = toStats(services)
	sort.Slice(sum.Services, func(i, j int) bool {
		if sum.Services[i].Count != sum.Services[j].Count {
			return sum.Services[i].Count > sum.Services[j].Count
		}
		return sum.Services[i].Name < sum.Services[j].Name
	})

	ms := toStats(mandals)
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Average != ms[j].Average {
			return ms[i].Average < ms[j].Average
		}
		return ms[i].Name < ms[j].Name
	})
	if len(ms) > lowestMandals {
		ms = ms[:lowestMandals]
	}
	sum.LowestMandals = ms
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
