package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarika-mitra/nagarika_mitra/internal/config"
	"github.com/nagarika-mitra/nagarika_mitra/internal/logging"
)

type capturingSMS struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *capturingSMS) SendOTP(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = code
	return nil
}

func (s *capturingSMS) last(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[phone]
}

type apiClient struct {
	t   *testing.T
	app *fiber.App
	sms *capturingSMS
}

func newAPI(t *testing.T, cache *redis.Client) *apiClient {
	t.Helper()
	cfg := config.Config{
		AppName:             "test",
		AppEnv:              "test",
		JWTSecret:           "secret",
		SessionTTL:          time.Hour,
		IdempotencyTTL:      time.Hour,
		OTPCooldown:         30 * time.Second,
		OTPCodeTTL:          5 * time.Minute,
		OTPMaxAttempts:      5,
		OTPTicketTTL:        10 * time.Minute,
		RestoreTimeout:      2 * time.Second,
		LocationLoadTimeout: 2 * time.Second,
	}
	sms := &capturingSMS{codes: map[string]string{}}
	app := fiber.New()
	_, err := Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard(), SMS: sms})
	require.NoError(t, err)
	return &apiClient{t: t, app: app, sms: sms}
}

func (a *apiClient) do(method, path, token string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

// signIn runs the verification flow and returns the session token.
func (a *apiClient) signIn(phone, digits string) (string, bool) {
	a.t.Helper()
	var started struct {
		Ticket string `json:"ticket"`
		Phone  string `json:"phone"`
	}
	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/auth/otp", "", map[string]string{"phone": phone}, &started))
	require.NotEmpty(a.t, started.Ticket)
	assert.NotContains(a.t, started.Phone, digits[4:10])

	code := a.sms.last(digits)
	require.Len(a.t, code, 6)

	var verified struct {
		Token           string `json:"token"`
		ProfileRequired bool   `json:"profile_required"`
	}
	require.Equal(a.t, http.StatusOK, a.do(http.MethodPost, "/api/v1/auth/otp/"+started.Ticket+"/verify", "", map[string]string{"code": code}, &verified))
	return verified.Token, verified.ProfileRequired
}

type errorBody struct {
	Error struct {
		Kind string `json:"kind"`
	} `json:"error"`
}

func runPortalFlow(t *testing.T, a *apiClient) {
	citizenToken, required := a.signIn("+91 98123-45678", "919812345678")
	assert.True(t, required)

	var st struct {
		State string `json:"state"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/session", citizenToken, nil, &st))
	assert.Equal(t, "awaiting_profile", st.State)

	var eb errorBody
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/v1/feedback/mine", citizenToken, nil, &eb))

	eb = errorBody{}
	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodPost, "/api/v1/profile/citizen", citizenToken,
		map[string]any{"name": "Anitha", "age": 34, "district": "Hyderabad", "mandal": "Hanamkonda"}, &eb))
	assert.Equal(t, "validation_failed", eb.Error.Kind)

	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/profile/citizen", citizenToken,
		map[string]any{"name": "Anitha", "age": 34, "gender": "female", "district": "Hyderabad", "mandal": "Secunderabad", "village": "Village1"}, nil))

	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/session", citizenToken, nil, &st))
	assert.Equal(t, "authenticated", st.State)

	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/feedback", citizenToken,
		map[string]any{"service_type": "Water Supply", "rating": 2, "feedback_text": "No water for three days in our lane"}, nil))

	var list struct {
		Items []map[string]any `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/feedback/mine", citizenToken, nil, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Secunderabad", list.Items[0]["mandal"])

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/v1/official/summary", citizenToken, nil, nil))

	officialToken, required := a.signIn("9876543210", "919876543210")
	assert.True(t, required)

	eb = errorBody{}
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/v1/profile/official", officialToken,
		map[string]any{"name": "Rajesh Kumar", "department": "Revenue", "employee_id": "REV999"}, &eb))
	assert.Equal(t, "invalid_credentials", eb.Error.Kind)

	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/profile/official", officialToken,
		map[string]any{"name": "Rajesh Kumar", "department": "Revenue", "employee_id": "REV001"}, nil))

	var summary struct {
		Total  int    `json:"total"`
		Status string `json:"status"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/official/summary", officialToken, nil, &summary))
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, "critical", summary.Status)

	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/official/messages", officialToken,
		map[string]any{"title": "Tanker schedule", "content": "Tankers reach Secunderabad at 7am", "urgency": "high", "district": "Hyderabad", "mandal": "Secunderabad"}, nil))

	list.Items = nil
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/messages", citizenToken, nil, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Tanker schedule", list.Items[0]["title"])

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/api/v1/session/logout", citizenToken, nil, nil))
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/session", citizenToken, nil, &st))
	assert.Equal(t, "anonymous", st.State)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/messages", citizenToken, nil, nil))
}

func TestPortalFlowInMemory(t *testing.T) {
	runPortalFlow(t, newAPI(t, nil))
}

func TestPortalFlowWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	runPortalFlow(t, newAPI(t, client))
}

func TestLocationCascadeRoutes(t *testing.T) {
	a := newAPI(t, nil)
	var list struct {
		Items []string `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/locations/mandals?district=Warangal", "", nil, &list))
	assert.Equal(t, []string{"Hanamkonda", "Warangal"}, list.Items)

	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/locations/villages?district=Hyderabad&mandal=Hanamkonda", "", nil, &list))
	assert.Empty(t, list.Items)
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	_, err := Setup(fiber.New(), Deps{Cfg: config.Config{AppEnv: "production"}, Logger: logging.Discard()})
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	a := newAPI(t, nil)
	var body struct {
		Status map[string]string `json:"status"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", "", nil, &body))
	assert.Equal(t, "memory", body.Status["postgres"])
}
