package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nagarika-mitra/nagarika_mitra/internal/config"
)

type claims struct {
	SessionID string `json:"sid"`
	Phone     string `json:"phone"`
	jwt.RegisteredClaims
}

// Service issues and validates backend session tokens.
type Service struct {
	users    UserRepository
	sessions SessionRegistry
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewService(cfg config.Config, users UserRepository, sessions SessionRegistry) *Service {
	return &Service{users: users, sessions: sessions, secret: []byte(cfg.JWTSecret), ttl: cfg.SessionTTL, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Establish creates a backend session for a phone whose ownership was proven.
func (s *Service) Establish(ctx context.Context, phone string) (Session, error) {
	user, err := s.users.EnsureByPhone(ctx, phone)
	if err != nil {
		return Session{}, fmt.Errorf("ensure auth user: %w", err)
	}

	now := s.now()
	exp := now.Add(s.ttl)
	sid := uuid.NewString()
	if err := s.sessions.Put(ctx, Principal{AuthUserID: user.ID, SessionID: sid, Phone: phone}, s.ttl); err != nil {
		return Session{}, fmt.Errorf("register session: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: sid,
		Phone:     phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: signed, AuthUserID: user.ID, SessionID: sid, ExpiresAt: exp}, nil
}

// IssueToken adapts Establish to the OTP verifier's token issuer.
func (s *Service) IssueToken(ctx context.Context, phone string) (string, error) {
	sess, err := s.Establish(ctx, phone)
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

// Current resolves a bearer token to its live principal.
func (s *Service) Current(ctx context.Context, token string) (Principal, error) {
	c, err := s.parse(token)
	if err != nil {
		return Principal{}, err
	}
	p, err := s.sessions.Get(ctx, c.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Principal{}, ErrSessionExpired
	}
	if err != nil {
		return Principal{}, err
	}
	if p.AuthUserID != c.Subject {
		return Principal{}, ErrInvalidToken
	}
	return p, nil
}

// Invalidate revokes the session behind token. Unknown or expired tokens are
// treated as already invalid.
func (s *Service) Invalidate(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}
	return s.sessions.Delete(ctx, c.SessionID)
}

func (s *Service) parse(token string) (*claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoSession
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.SessionID == "" || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &c, nil
}
