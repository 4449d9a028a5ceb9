// Package session holds the identity bound to one bearer token and drives
// its lifecycle: restore, login, logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nagarika-mitra/nagarika_mitra/internal/auth"
	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/metrics"
)

var (
	ErrPersistence  = errors.New("profile could not be saved")
	ErrLoadTimeout  = errors.New("session restore timed out")
	ErrInvalidState = errors.New("operation not allowed in current session state")
	// ErrStale is returned by Restore when Login or Logout ran while it was pending.
	ErrStale = errors.New("restore result superseded")
)

// State of a Store.
type State int

const (
	Uninitialized State = iota
	Restoring
	Anonymous
	// AwaitingProfile: a backend session exists but no profile is bound yet.
	AwaitingProfile
	Authenticated
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Restoring:
		return "restoring"
	case Anonymous:
		return "anonymous"
	case AwaitingProfile:
		return "awaiting_profile"
	case Authenticated:
		return "authenticated"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the backend session capability.
type Backend interface {
	Current(ctx context.Context, token string) (auth.Principal, error)
	Invalidate(ctx context.Context, token string) error
}

// Store holds at most one identity for one bearer token.
type Store struct {
	backend        Backend
	citizens       identity.Repository
	cache          Cache
	restoreTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics

	mu        sync.Mutex
	token     string
	scope     string
	state     State
	principal *auth.Principal
	ident     identity.Identity
	err       error
	epoch     uint64
}

// Token returns the bearer token the store is bound to.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the bound identity, if any.
func (s *Store) Identity() (identity.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ident, s.ident != nil
}

// Principal returns the backend session principal, if one was resolved.
func (s *Store) Principal() (auth.Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return auth.Principal{}, false
	}
	return *s.principal, true
}

// Err returns the error that put the store into Error.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// IsAuthenticated requires both a backend session and a completed profile.
func (s *Store) IsAuthenticated() bool {
	return s.State() == Authenticated
}

type outcome struct {
	state     State
	principal *auth.Principal
	ident     identity.Identity
	err       error
}

// Restore re-derives the identity from the backend session, bounded by the
// restore timeout. On timeout the store enters Error with ErrLoadTimeout and
// Restore may be called again.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.state = Restoring
	s.err = nil
	token, scope := s.token, s.scope
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.restoreTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		done <- s.resolve(ctx, token, scope)
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{state: Error, err: ErrLoadTimeout}
	}
	if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
		out = outcome{state: Error, err: ErrLoadTimeout}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return ErrStale
	}
	s.state = out.state
	s.principal = out.principal
	s.ident = out.ident
	s.err = out.err
	s.metrics.SessionRestored(out.state.String())
	return out.err
}

func (s *Store) resolve(ctx context.Context, token, scope string) outcome {
	if token == "" {
		return outcome{state: Anonymous}
	}
	p, err := s.backend.Current(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) || errors.Is(err, auth.ErrSessionExpired) || errors.Is(err, auth.ErrInvalidToken) {
			if delErr := s.cache.Delete(ctx, scope, IdentityKey, RosterKey); delErr != nil {
				s.logger.Warn("discard stale session cache failed", slog.Any("error", delErr))
			}
			return outcome{state: Anonymous}
		}
		return outcome{state: Error, err: fmt.Errorf("resolve backend session: %w", err)}
	}

	cached, err := s.cachedIdentity(ctx, scope)
	if err != nil {
		s.logger.Warn("cached identity unreadable", slog.Any("error", err))
	}
	if _, ok := cached.(*identity.Official); ok {
		official, err := s.rehydrateOfficial(ctx, scope, p)
		if err == nil {
			return outcome{state: Authenticated, principal: &p, ident: official}
		}
		s.logger.Warn("official roster cache missing", slog.Any("error", err))
	}

	citizen, err := s.citizens.FindCitizenByAuthUserID(ctx, p.AuthUserID)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		if cached != nil {
			_ = s.cache.Delete(ctx, scope, IdentityKey, RosterKey)
		}
		return outcome{state: AwaitingProfile, principal: &p}
	case err != nil:
		return outcome{state: Error, principal: &p, err: fmt.Errorf("load citizen profile: %w", err)}
	}
	ident := &citizen
	if err := s.writeCache(ctx, scope, IdentityKey, ident); err != nil {
		s.logger.Warn("cache identity failed", slog.Any("error", err))
	}
	return outcome{state: Authenticated, principal: &p, ident: ident}
}

func (s *Store) rehydrateOfficial(ctx context.Context, scope string, p auth.Principal) (*identity.Official, error) {
	raw, err := s.cache.Get(ctx, scope, RosterKey)
	if err != nil {
		return nil, err
	}
	var doc identity.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	id, err := identity.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	official, ok := id.(*identity.Official)
	if !ok {
		return nil, fmt.Errorf("%w: roster cache holds %s", identity.ErrUnknownRole, doc.Role)
	}
	if official.PhoneNumber == "" {
		official.PhoneNumber = p.Phone
	}
	return official, nil
}

func (s *Store) cachedIdentity(ctx context.Context, scope string) (identity.Identity, error) {
	raw, err := s.cache.Get(ctx, scope, IdentityKey)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc identity.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return identity.FromDocument(doc)
}

func (s *Store) writeCache(ctx context.Context, scope, key string, id identity.Identity) error {
	doc, err := identity.ToDocument(id)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, scope, key, raw)
}

// Login binds id to the session. Citizens are upserted keyed by the backend
// auth user first; on failure the store is left unchanged and ErrPersistence
// returned. Officials are stored directly together with their roster data.
func (s *Store) Login(ctx context.Context, id identity.Identity) (identity.Identity, error) {
	s.mu.Lock()
	if s.state != AwaitingProfile || s.principal == nil {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: login from %s", ErrInvalidState, state)
	}
	p := *s.principal
	scope := s.scope
	s.mu.Unlock()

	var bound identity.Identity
	switch v := id.(type) {
	case *identity.Citizen:
		c := *v
		c.AuthUserID = p.AuthUserID
		stored, err := s.citizens.UpsertCitizen(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		bound = &stored
		if err := s.writeCache(ctx, scope, IdentityKey, bound); err != nil {
			s.logger.Warn("cache identity failed", slog.Any("error", err))
		}
	case *identity.Official:
		o := *v
		if err := s.writeCache(ctx, scope, RosterKey, &o); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if err := s.writeCache(ctx, scope, IdentityKey, &o); err != nil {
			_ = s.cache.Delete(ctx, scope, RosterKey)
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		bound = &o
	default:
		return nil, fmt.Errorf("%w: %T", identity.ErrUnknownRole, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.state = Authenticated
	s.ident = bound
	s.err = nil
	return bound, nil
}

// Logout clears the identity and cached roster data and invalidates the
// backend session. The store always ends Anonymous; the returned error only
// reports cleanup failures.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.epoch++
	token, scope := s.token, s.scope
	s.state = Anonymous
	s.principal = nil
	s.ident = nil
	s.err = nil
	s.mu.Unlock()

	if token == "" {
		return nil
	}
	cacheErr := s.cache.Delete(ctx, scope, IdentityKey, RosterKey)
	invErr := s.backend.Invalidate(ctx, token)
	return errors.Join(cacheErr, invErr)
}
