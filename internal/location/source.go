package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrLocationDataUnavailable means the reference set could not be loaded.
	// It is distinct from a successfully loaded empty derivation.
	ErrLocationDataUnavailable = errors.New("location data unavailable")
	ErrLoadTimeout             = errors.New("location data load timed out")
)

// Status of the reference set.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Source loads the reference set once and hands out the Resolver. Failed
// loads are retried on the next request.
type Source struct {
	repo    Repository
	timeout time.Duration
	logger  *slog.Logger
	group   singleflight.Group

	mu       sync.RWMutex
	status   Status
	resolver *Resolver
	err      error
}

func NewSource(repo Repository, timeout time.Duration, logger *slog.Logger) *Source {
	return &Source{repo: repo, timeout: timeout, logger: logger, status: StatusLoading}
}

// Status reports the current load state and, when failed, the cause.
func (s *Source) Status() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.err
}

// Resolver returns the loaded resolver, loading it if needed. Concurrent
// callers share a single load.
func (s *Source) Resolver(ctx context.Context) (*Resolver, error) {
	s.mu.RLock()
	if s.status == StatusReady {
		r := s.resolver
		s.mu.RUnlock()
		return r, nil
	}
	s.mu.RUnlock()

	ch := s.group.DoChan("load", func() (any, error) {
		return s.load()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Resolver), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrLocationDataUnavailable, ctx.Err())
	}
}

// Reload discards the current set and loads it again.
func (s *Source) Reload(ctx context.Context) (*Resolver, error) {
	s.mu.Lock()
	s.status = StatusLoading
	s.resolver = nil
	s.err = nil
	s.mu.Unlock()
	return s.Resolver(ctx)
}

func (s *Source) load() (*Resolver, error) {
	s.mu.Lock()
	s.status = StatusLoading
	s.mu.Unlock()

	// detached from the first caller so its cancellation does not fail the shared load
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	triples, err := s.repo.LoadTriples(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrLoadTimeout
		} else {
			err = fmt.Errorf("%w: %v", ErrLocationDataUnavailable, err)
		}
		s.mu.Lock()
		s.status = StatusFailed
		s.err = err
		s.mu.Unlock()
		s.logger.Error("location reference load failed", slog.Any("error", err))
		return nil, err
	}

	r := NewResolver(triples)
	s.mu.Lock()
	s.status = StatusReady
	s.resolver = r
	s.err = nil
	s.mu.Unlock()
	s.logger.Info("location reference loaded", slog.Int("rows", len(triples)), slog.Int("districts", len(r.districts)))
	return r, nil
}
