package messages

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

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Broadcast sends a message on behalf of the signed-in official.
func (h *Handler) Broadcast(c *fiber.Ctx) error {
	official, ok := session.OfficialFrom(c)
	if !ok {
		return apierr.Forbidden(c, "official access required")
	}
	var in BroadcastInput
	if err := c.BodyParser(&in); err != nil {
		return apierr.BadRequest(c, err)
	}
	m, err := h.service.Broadcast(c.UserContext(), official, in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(m)
}

// Inbox lists messages for the signed-in citizen.
func (h *Handler) Inbox(c *fiber.Ctx) error {
	citizen, ok := session.CitizenFrom(c)
	if !ok {
		return apierr.Forbidden(c, "citizen profile required")
	}
	list, err := h.service.ListForCitizen(c.UserContext(), citizen)
	if err != nil {
		return h.writeError(c, err)
	}
	if list == nil {
		list = []Message{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"items": list})
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
		h.logger.Error("messages request failed", slog.Any("error", err))
		return apierr.Internal(c)
	}
}
