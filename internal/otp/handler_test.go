package otp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nagarika-mitra/nagarika_mitra/internal/logging"
)

type probeStub struct{ required bool }

func (p probeStub) ProfileRequired(context.Context, string) (bool, error) { return p.required, nil }

func newHandlerApp(t *testing.T) (*fiber.App, *recordingSMS, *Registry) {
	t.Helper()
	sms := &recordingSMS{}
	p := NewCodeProvider(NewMemoryCodeStore(nil), sms, &stubIssuer{}, time.Minute, 5, logging.Discard())
	p.cost = bcrypt.MinCost
	reg := NewRegistry(func() *Machine { return NewMachine(p, p) }, time.Minute, logging.Discard())
	h := NewHandler(reg, probeStub{required: true}, nil, logging.Discard())

	app := fiber.New()
	app.Post("/auth/otp", h.Start)
	app.Get("/auth/otp/:ticket", h.Status)
	app.Post("/auth/otp/:ticket/resend", h.Resend)
	app.Post("/auth/otp/:ticket/verify", h.Verify)
	app.Delete("/auth/otp/:ticket", h.Cancel)
	return app, sms, reg
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func errorKind(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	k, _ := e["kind"].(string)
	return k
}

func TestHandlerFullFlow(t *testing.T) {
	app, sms, reg := newHandlerApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/auth/otp", `{"phone":"+91 98123 45678"}`)
	require.Equal(t, http.StatusCreated, status)
	ticket := body["ticket"].(string)
	assert.Equal(t, "awaiting_code", body["state"])
	assert.Equal(t, "sent", body["status"])

	status, body = doJSON(t, app, http.MethodPost, "/auth/otp/"+ticket+"/resend", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "cooldown_active", errorKind(body))

	status, body = doJSON(t, app, http.MethodPost, "/auth/otp/"+ticket+"/verify", `{"code":"12"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_code_format", errorKind(body))

	wrong := "000000"
	if sms.code == wrong {
		wrong = "999999"
	}
	status, body = doJSON(t, app, http.MethodPost, "/auth/otp/"+ticket+"/verify", `{"code":"`+wrong+`"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "code_rejected", errorKind(body))

	status, body = doJSON(t, app, http.MethodPost, "/auth/otp/"+ticket+"/verify", `{"code":"`+sms.code+`"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "jwt-+919812345678", body["token"])
	assert.Equal(t, true, body["profile_required"])
	assert.Zero(t, reg.Len(), "verified tickets are consumed")
}

func TestHandlerInvalidPhone(t *testing.T) {
	app, _, reg := newHandlerApp(t)
	status, body := doJSON(t, app, http.MethodPost, "/auth/otp", `{"phone":"12345"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_format", errorKind(body))
	assert.Zero(t, reg.Len())
}

func TestHandlerCancelAndUnknownTicket(t *testing.T) {
	app, _, _ := newHandlerApp(t)
	_, body := doJSON(t, app, http.MethodPost, "/auth/otp", `{"phone":"9812345678"}`)
	ticket := body["ticket"].(string)

	status, _ := doJSON(t, app, http.MethodDelete, "/auth/otp/"+ticket, "")
	assert.Equal(t, http.StatusNoContent, status)

	status, body = doJSON(t, app, http.MethodGet, "/auth/otp/"+ticket, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errorKind(body))
}
