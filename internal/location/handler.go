package location

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/apierr"
)

// Handler serves the cascade to clients building dropdowns.
type Handler struct {
	source *Source
}

func NewHandler(source *Source) *Handler {
	return &Handler{source: source}
}

type listResponse struct {
	Items []string `json:"items"`
}

func (h *Handler) Districts(c *fiber.Ctx) error {
	r, err := h.source.Resolver(c.UserContext())
	if err != nil {
		return WriteError(c, err)
	}
	return c.Status(http.StatusOK).JSON(listResponse{Items: r.Districts()})
}

func (h *Handler) Mandals(c *fiber.Ctx) error {
	r, err := h.source.Resolver(c.UserContext())
	if err != nil {
		return WriteError(c, err)
	}
	return c.Status(http.StatusOK).JSON(listResponse{Items: r.MandalsOf(c.Query("district"))})
}

func (h *Handler) Villages(c *fiber.Ctx) error {
	r, err := h.source.Resolver(c.UserContext())
	if err != nil {
		return WriteError(c, err)
	}
	return c.Status(http.StatusOK).JSON(listResponse{Items: r.VillagesOf(c.Query("district"), c.Query("mandal"))})
}

// WriteError renders load failures so clients can tell them apart from an
// empty list. Other errors become a 500.
func WriteError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrLoadTimeout):
		return apierr.Write(c, http.StatusServiceUnavailable, apierr.KindLoadTimeout, err)
	case errors.Is(err, ErrLocationDataUnavailable):
		return apierr.Write(c, http.StatusServiceUnavailable, apierr.KindLocationDataUnavailable, err)
	default:
		return apierr.Internal(c)
	}
}
