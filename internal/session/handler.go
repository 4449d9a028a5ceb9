package session

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
)

// LocalsKey is where the session middleware leaves the restored *Store.
const LocalsKey = "session_store"

// FromCtx returns the store placed by the session middleware, or nil.
func FromCtx(c *fiber.Ctx) *Store {
	s, _ := c.Locals(LocalsKey).(*Store)
	return s
}

// Handler exposes the current session.
type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

type stateResponse struct {
	State    string             `json:"state"`
	Phone    string             `json:"phone,omitempty"`
	Identity *identity.Document `json:"identity,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Current reports the restored state. Restore failures are part of the
// response rather than an HTTP error so clients can offer a retry.
func (h *Handler) Current(c *fiber.Ctx) error {
	s := FromCtx(c)
	if s == nil {
		return c.Status(http.StatusOK).JSON(stateResponse{State: Anonymous.String()})
	}
	resp := stateResponse{State: s.State().String()}
	if p, ok := s.Principal(); ok {
		resp.Phone = p.Phone
	}
	if id, ok := s.Identity(); ok {
		doc, err := identity.ToDocument(id)
		if err != nil {
			h.logger.Error("encode identity", slog.Any("error", err))
			return apierr.Internal(c)
		}
		doc.AuthUserID = ""
		resp.Identity = &doc
	}
	if err := s.Err(); err != nil {
		resp.Error = err.Error()
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Logout ends the session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	s := FromCtx(c)
	if s == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	if err := s.Logout(c.UserContext()); err != nil {
		h.logger.Warn("logout cleanup incomplete", slog.Any("error", err))
	}
	return c.SendStatus(http.StatusNoContent)
}

// CitizenFrom returns the authenticated citizen bound to the request, if any.
func CitizenFrom(c *fiber.Ctx) (*identity.Citizen, bool) {
	s := FromCtx(c)
	if s == nil || !s.IsAuthenticated() {
		return nil, false
	}
	id, _ := s.Identity()
	citizen, ok := id.(*identity.Citizen)
	return citizen, ok
}

// OfficialFrom returns the authenticated official bound to the request, if any.
func OfficialFrom(c *fiber.Ctx) (*identity.Official, bool) {
	s := FromCtx(c)
	if s == nil || !s.IsAuthenticated() {
		return nil, false
	}
	id, _ := s.Identity()
	official, ok := id.(*identity.Official)
	return official, ok
}
