package auth

import (
	"errors"
	"time"
)

var (
	// ErrNoSession is returned when no bearer token was presented.
	ErrNoSession = errors.New("no session")
	// ErrSessionExpired covers expired tokens and sessions removed from the registry.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidToken is returned for malformed or badly signed tokens.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrSessionNotFound is returned by registries for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
)

// User is the backend auth user a verified phone maps to.
type User struct {
	ID        string
	Phone     string
	CreatedAt time.Time
}

// Session is the result of Establish: the bearer token handed to the client.
type Session struct {
	Token      string    `json:"token"`
	AuthUserID string    `json:"auth_user_id"`
	SessionID  string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Principal is what a valid token resolves to.
type Principal struct {
	AuthUserID string `json:"auth_user_id"`
	SessionID  string `json:"session_id"`
	Phone      string `json:"phone"`
}
