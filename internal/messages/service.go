package messages

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/location"
	"github.com/nagarika-mitra/nagarika_mitra/internal/metrics"
	"github.com/nagarika-mitra/nagarika_mitra/internal/notification"
	"github.com/nagarika-mitra/nagarika_mitra/internal/validation"
)

// Service sends official broadcasts and builds citizen inboxes.
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

// Broadcast validates in and stores it as a message from official. Officials
// with an assigned district may only address that district.
func (s *Service) Broadcast(ctx context.Context, official *identity.Official, in BroadcastInput) (Message, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	sel := location.Selection{
		District: strings.TrimSpace(in.District),
		Mandal:   strings.TrimSpace(in.Mandal),
		Village:  strings.TrimSpace(in.Village),
	}
	roles := in.TargetRoles
	if len(roles) == 0 {
		roles = []identity.Role{identity.RoleCitizen}
	}

	var errs validation.Errors
	if in.Title == "" {
		errs.Add("title", "is required")
	}
	if in.Content == "" {
		errs.Add("content", "is required")
	}
	if !in.Urgency.Valid() {
		errs.Add("urgency", "must be low, medium or high")
	}
	for _, role := range roles {
		if role != identity.RoleCitizen && role != identity.RoleOfficial {
			errs.Add("target_roles", fmt.Sprintf("unknown role %q", role))
			break
		}
	}

	r, err := s.locations.Resolver(ctx)
	if err != nil {
		return Message{}, err
	}
	sel.Validate(r, false, &errs)
	if official.District != "" && sel.District != "" && sel.District != official.District {
		errs.Add("district", "must be your assigned district")
	}
	if err := errs.Err(); err != nil {
		return Message{}, err
	}

	m, err := s.repo.Insert(ctx, Message{
		SenderID:    official.ID,
		SenderName:  official.Name,
		Department:  official.Department,
		Title:       in.Title,
		Content:     in.Content,
		Urgency:     in.Urgency,
		District:    sel.District,
		Mandal:      sel.Mandal,
		Village:     sel.Village,
		TargetRoles: slices.Compact(slices.Sorted(slices.Values(roles))),
	})
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	s.metrics.IncrementMessages()

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, notification.Event{
			Table: notification.TableMessages, Type: notification.TypeInsert, RecordID: m.ID,
			District: m.District, Mandal: m.Mandal, Village: m.Village, At: m.CreatedAt,
		})
		if err != nil {
			s.logger.Warn("publish message event failed", slog.String("message_id", m.ID), slog.Any("error", err))
		}
	}
	return m, nil
}

// ListForCitizen returns the messages addressed to the citizen's location, newest first.
func (s *Service) ListForCitizen(ctx context.Context, citizen *identity.Citizen) ([]Message, error) {
	if citizen.District == "" {
		return nil, ErrNoDistrict
	}
	return s.repo.ListFor(ctx, Audience{
		Role:     identity.RoleCitizen,
		District: citizen.District,
		Mandal:   citizen.Mandal,
		Village:  citizen.Village,
	})
}
