package profile

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/location"
	"github.com/nagarika-mitra/nagarika_mitra/internal/otp"
	"github.com/nagarika-mitra/nagarika_mitra/internal/roster"
	"github.com/nagarika-mitra/nagarika_mitra/internal/session"
	"github.com/nagarika-mitra/nagarika_mitra/internal/validation"
)

// Handler exposes profile completion for sessions awaiting a profile.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// verified builds the trusted phone from the restored backend session.
func verified(s *session.Store) (otp.Verified, bool) {
	if s == nil {
		return otp.Verified{}, false
	}
	p, ok := s.Principal()
	if !ok {
		return otp.Verified{}, false
	}
	return otp.Verified{Phone: p.Phone, Token: s.Token()}, true
}

func (h *Handler) Citizen(c *fiber.Ctx) error {
	s := session.FromCtx(c)
	v, ok := verified(s)
	if !ok {
		return apierr.Unauthorized(c, "verified session required")
	}
	var form CitizenForm
	if err := c.BodyParser(&form); err != nil {
		return apierr.BadRequest(c, err)
	}
	citizen, err := h.service.CompleteCitizen(c.UserContext(), s, v, form)
	if err != nil {
		return h.writeError(c, err)
	}
	doc, _ := identity.ToDocument(citizen)
	doc.AuthUserID = ""
	return c.Status(http.StatusCreated).JSON(fiber.Map{"state": s.State().String(), "identity": doc})
}

func (h *Handler) Official(c *fiber.Ctx) error {
	s := session.FromCtx(c)
	v, ok := verified(s)
	if !ok {
		return apierr.Unauthorized(c, "verified session required")
	}
	var form OfficialForm
	if err := c.BodyParser(&form); err != nil {
		return apierr.BadRequest(c, err)
	}
	official, err := h.service.CompleteOfficial(c.UserContext(), s, v, form)
	if err != nil {
		return h.writeError(c, err)
	}
	doc, _ := identity.ToDocument(official)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"state": s.State().String(), "identity": doc})
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	// Location failures win over violations; the envelope still carries them.
	if errors.Is(err, location.ErrLoadTimeout) || errors.Is(err, location.ErrLocationDataUnavailable) {
		return location.WriteError(c, err)
	}
	if _, ok := validation.As(err); ok {
		return apierr.Validation(c, err)
	}
	switch {
	case errors.Is(err, roster.ErrInvalidCredentials):
		return apierr.Write(c, http.StatusUnauthorized, apierr.KindInvalidCredentials, err)
	case errors.Is(err, session.ErrPersistence):
		h.logger.Error("profile persistence failed", slog.Any("error", err))
		return apierr.Write(c, http.StatusServiceUnavailable, apierr.KindPersistence, session.ErrPersistence)
	case errors.Is(err, session.ErrInvalidState):
		return apierr.Write(c, http.StatusConflict, apierr.KindInvalidState, err)
	case errors.Is(err, otp.ErrInvalidFormat):
		return apierr.Write(c, http.StatusUnprocessableEntity, apierr.KindInvalidFormat, err)
	default:
		h.logger.Error("profile completion failed", slog.Any("error", err))
		return apierr.Internal(c)
	}
}
