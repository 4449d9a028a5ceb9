// Package apierr renders handler failures as a uniform JSON body whose kind
// field names the error taxonomy entry the client should react to.
package apierr

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nagarika-mitra/nagarika_mitra/internal/validation"
)

// Error taxonomy exposed to clients.
const (
	KindInvalidFormat           = "invalid_format"
	KindInvalidCodeFormat       = "invalid_code_format"
	KindDispatchFailed          = "dispatch_failed"
	KindCodeRejected            = "code_rejected"
	KindCooldownActive          = "cooldown_active"
	KindBusy                    = "busy"
	KindInvalidState            = "invalid_state"
	KindInvalidCredentials      = "invalid_credentials"
	KindPersistence             = "persistence_error"
	KindLoadTimeout             = "load_timeout"
	KindLocationDataUnavailable = "location_data_unavailable"
	KindValidation              = "validation_failed"
	KindUnauthorized            = "unauthorized"
	KindForbidden               = "forbidden"
	KindNotFound                = "not_found"
	KindBadRequest              = "bad_request"
	KindInternal                = "internal"
)

type body struct {
	Kind       string                 `json:"kind"`
	Message    string                 `json:"message"`
	Violations []validation.Violation `json:"violations,omitempty"`
}

// Write responds with status and a JSON error envelope. Validation
// violations carried by err are included.
func Write(c *fiber.Ctx, status int, kind string, err error) error {
	b := body{Kind: kind}
	if err != nil {
		b.Message = err.Error()
		if v, ok := validation.As(err); ok {
			b.Violations = v
		}
	}
	return c.Status(status).JSON(fiber.Map{"error": b})
}

// BadRequest is shorthand for malformed request bodies.
func BadRequest(c *fiber.Ctx, err error) error {
	return Write(c, http.StatusBadRequest, KindBadRequest, err)
}

// Validation writes a 422 carrying violations.
func Validation(c *fiber.Ctx, err error) error {
	return Write(c, http.StatusUnprocessableEntity, KindValidation, err)
}

// Internal writes a 500 without leaking the cause; callers log it first.
func Internal(c *fiber.Ctx) error {
	return Write(c, http.StatusInternalServerError, KindInternal, errors.New("internal error"))
}

// Unauthorized writes a 401.
func Unauthorized(c *fiber.Ctx, msg string) error {
	return Write(c, http.StatusUnauthorized, KindUnauthorized, errors.New(msg))
}

// Forbidden writes a 403.
func Forbidden(c *fiber.Ctx, msg string) error {
	return Write(c, http.StatusForbidden, KindForbidden, errors.New(msg))
}
