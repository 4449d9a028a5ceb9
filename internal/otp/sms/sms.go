// Package sms delivers one-time passcodes by SMS.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultTimeout = 15 * time.Second
	DefaultBaseURL = "https://www.smslocal.com/dev/bulkV2"
)

// ErrNotConfigured is returned when the HTTP client has no API key.
var ErrNotConfigured = errors.New("sms: API key not configured")

// Client sends a code to a phone given in provider form (digits, no '+').
type Client interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// HTTPClient posts OTP messages to an SMS Local compatible endpoint.
type HTTPClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewHTTPClient returns a client using apiKey and optional base URL and sender id.
func NewHTTPClient(apiKey, baseURL, sender string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type otpRequest struct {
	Route     string `json:"route"`
	Numbers   string `json:"numbers"`
	Variables string `json:"variables"`
	Sender    string `json:"sender,omitempty"`
}

// SendOTP sends code to phone (route=otp). The code is never logged.
func (c *HTTPClient) SendOTP(ctx context.Context, phone, code string) error {
	if c.APIKey == "" {
		return ErrNotConfigured
	}
	raw, err := json.Marshal(otpRequest{Route: "otp", Numbers: phone, Variables: code, Sender: c.Sender})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// LogClient writes codes to the logger instead of sending them. Development only.
type LogClient struct {
	logger *slog.Logger
}

func NewLogClient(logger *slog.Logger) *LogClient {
	return &LogClient{logger: logger}
}

func (c *LogClient) SendOTP(_ context.Context, phone, code string) error {
	c.logger.Warn("dev otp issued", slog.String("phone", phone), slog.String("code", code))
	return nil
}
