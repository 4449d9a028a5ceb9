package otp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
	"github.com/nagarika-mitra/nagarika_mitra/internal/metrics"
	"github.com/nagarika-mitra/nagarika_mitra/internal/phone"
)

// SessionProbe reports whether a freshly issued token still needs profile completion.
type SessionProbe interface {
	ProfileRequired(ctx context.Context, token string) (bool, error)
}

// Handler exposes the verification flow over HTTP.
type Handler struct {
	registry *Registry
	probe    SessionProbe
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewHandler(registry *Registry, probe SessionProbe, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, probe: probe, metrics: m, logger: logger}
}

type startRequest struct {
	Phone string `json:"phone"`
}

type ticketResponse struct {
	Ticket   string    `json:"ticket"`
	State    string    `json:"state"`
	Status   string    `json:"status"`
	Phone    string    `json:"phone,omitempty"`
	ResendAt time.Time `json:"resend_at,omitempty"`
}

// Start opens a ticket and dispatches a code to the submitted phone.
func (h *Handler) Start(c *fiber.Ctx) error {
	var req startRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.BadRequest(c, err)
	}
	id, m := h.registry.Create()
	h.metrics.SetOpenTickets(h.registry.Len())

	res, err := m.SubmitPhone(c.UserContext(), req.Phone)
	if err != nil {
		h.registry.Remove(id)
		h.metrics.SetOpenTickets(h.registry.Len())
		h.recordDispatch(err)
		return h.writeError(c, err)
	}
	h.recordDispatch(nil)
	return c.Status(http.StatusCreated).JSON(h.ticket(id, m, res))
}

// Resend re-dispatches the code for an existing ticket.
func (h *Handler) Resend(c *fiber.Ctx) error {
	id := c.Params("ticket")
	m, err := h.registry.Get(id)
	if err != nil {
		return h.writeError(c, err)
	}
	res, err := m.Resend(c.UserContext())
	if err != nil {
		if !errors.Is(err, ErrCooldownActive) {
			h.recordDispatch(err)
		}
		return h.writeError(c, err)
	}
	h.recordDispatch(nil)
	return c.Status(http.StatusOK).JSON(h.ticket(id, m, res))
}

// Status reports the ticket's current state.
func (h *Handler) Status(c *fiber.Ctx) error {
	id := c.Params("ticket")
	m, err := h.registry.Get(id)
	if err != nil {
		return h.writeError(c, err)
	}
	s := m.Snapshot()
	return c.Status(http.StatusOK).JSON(ticketResponse{
		Ticket: id, State: s.State.String(), Status: string(s.Status), Phone: phone.Mask(s.Phone), ResendAt: s.ResendAt,
	})
}

type verifyRequest struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	Token           string `json:"token"`
	Phone           string `json:"phone"`
	ProfileRequired bool   `json:"profile_required"`
}

// Verify submits the code. On success the ticket is consumed and a session
// token returned.
func (h *Handler) Verify(c *fiber.Ctx) error {
	id := c.Params("ticket")
	m, err := h.registry.Get(id)
	if err != nil {
		return h.writeError(c, err)
	}
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.BadRequest(c, err)
	}

	v, err := m.SubmitCode(c.UserContext(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooManyAttempts), errors.Is(err, ErrCodeExpired):
			h.registry.Remove(id)
			h.metrics.OTPVerified("locked")
		case errors.Is(err, ErrCodeRejected):
			h.metrics.OTPVerified("rejected")
		}
		return h.writeError(c, err)
	}
	h.registry.Remove(id)
	h.metrics.SetOpenTickets(h.registry.Len())
	h.metrics.OTPVerified("ok")

	required := true
	if h.probe != nil {
		if r, err := h.probe.ProfileRequired(c.UserContext(), v.Token); err != nil {
			h.logger.Warn("profile probe failed", slog.Any("error", err))
		} else {
			required = r
		}
	}
	return c.Status(http.StatusOK).JSON(verifyResponse{Token: v.Token, Phone: v.Phone, ProfileRequired: required})
}

// Cancel resets and discards the ticket ("change number").
func (h *Handler) Cancel(c *fiber.Ctx) error {
	id := c.Params("ticket")
	if m, err := h.registry.Get(id); err == nil {
		m.Reset()
	}
	h.registry.Remove(id)
	h.metrics.SetOpenTickets(h.registry.Len())
	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler) ticket(id string, m *Machine, res DispatchResult) ticketResponse {
	s := m.Snapshot()
	return ticketResponse{Ticket: id, State: s.State.String(), Status: string(s.Status), Phone: phone.Mask(res.Phone), ResendAt: res.ResendAt}
}

func (h *Handler) recordDispatch(err error) {
	switch {
	case err == nil:
		h.metrics.OTPDispatched("ok")
	case errors.Is(err, ErrDispatchFailed):
		h.metrics.OTPDispatched("failed")
	case errors.Is(err, ErrInvalidFormat):
		h.metrics.OTPDispatched("invalid")
	}
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidFormat):
		return apierr.Write(c, http.StatusUnprocessableEntity, apierr.KindInvalidFormat, err)
	case errors.Is(err, ErrInvalidCodeFormat):
		return apierr.Write(c, http.StatusUnprocessableEntity, apierr.KindInvalidCodeFormat, err)
	case errors.Is(err, ErrDispatchFailed):
		h.logger.Warn("otp dispatch failed", slog.Any("error", err))
		return apierr.Write(c, http.StatusBadGateway, apierr.KindDispatchFailed, err)
	case errors.Is(err, ErrCodeRejected):
		return apierr.Write(c, http.StatusUnauthorized, apierr.KindCodeRejected, err)
	case errors.Is(err, ErrCooldownActive):
		return apierr.Write(c, http.StatusTooManyRequests, apierr.KindCooldownActive, err)
	case errors.Is(err, ErrBusy):
		return apierr.Write(c, http.StatusConflict, apierr.KindBusy, err)
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrStale):
		return apierr.Write(c, http.StatusConflict, apierr.KindInvalidState, err)
	case errors.Is(err, ErrTicketNotFound):
		return apierr.Write(c, http.StatusNotFound, apierr.KindNotFound, err)
	default:
		h.logger.Error("otp request failed", slog.Any("error", err))
		return apierr.Internal(c)
	}
}
