package feedback

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
	"github.com/nagarika-mitra/nagarika_mitra/internal/location"
	"github.com/nagarika-mitra/nagarika_mitra/internal/session"
	"github.com/nagarika-mitra/nagarika_mitra/internal/validation"
)

// Handler exposes feedback endpoints for citizens and officials.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type listResponse struct {
	Items []Feedback `json:"items"`
}

func items(f []Feedback) listResponse {
	if f == nil {
		f = []Feedback{}
	}
	return listResponse{Items: f}
}

// Submit records feedback from the signed-in citizen.
func (h *Handler) Submit(c *fiber.Ctx) error {
	citizen, ok := session.CitizenFrom(c)
	if !ok {
		return apierr.Forbidden(c, "citizen profile required")
	}
	var in SubmitInput
	if err := c.BodyParser(&in); err != nil {
		return apierr.BadRequest(c, err)
	}
	f, err := h.service.Submit(c.UserContext(), citizen, in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(f)
}

func (h *Handler) Mine(c *fiber.Ctx) error {
	citizen, ok := session.CitizenFrom(c)
	if !ok {
		return apierr.Forbidden(c, "citizen profile required")
	}
	list, err := h.service.ListMine(c.UserContext(), citizen)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(items(list))
}

func (h *Handler) Nearby(c *fiber.Ctx) error {
	citizen, ok := session.CitizenFrom(c)
	if !ok {
		return apierr.Forbidden(c, "citizen profile required")
	}
	list, err := h.service.ListNearby(c.UserContext(), citizen)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(items(list))
}

// District lists feedback for the official's district.
func (h *Handler) District(c *fiber.Ctx) error {
	official, ok := session.OfficialFrom(c)
	if !ok {
		return apierr.Forbidden(c, "official access required")
	}
	list, err := h.service.ListForDistrict(c.UserContext(), official, Filter{
		Mandal:      c.Query("mandal"),
		Village:     c.Query("village"),
		ServiceType: c.Query("service_type"),
		Band:        RatingBand(c.Query("rating")),
		Search:      c.Query("q"),
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(items(list))
}

func (h *Handler) Summary(c *fiber.Ctx) error {
	official, ok := session.OfficialFrom(c)
	if !ok {
		return apierr.Forbidden(c, "official access required")
	}
	sum, err := h.service.Summary(c.UserContext(), official.District)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(sum)
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	if _, ok := validation.As(err); ok {
		return apierr.Validation(c, err)
	}
	switch {
	case errors.Is(err, ErrNoDistrict):
		return apierr.Forbidden(c, err.Error())
	case errors.Is(err, location.ErrLoadTimeout), errors.Is(err, location.ErrLocationDataUnavailable):
		return location.WriteError(c, err)
	default:
		h.logger.Error("feedback request failed", slog.Any("error", err))
		return apierr.Internal(c)
	}
}
