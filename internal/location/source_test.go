package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarika-mitra/nagarika_mitra/internal/logging"
)

type countingRepo struct {
	calls   atomic.Int32
	err     error
	delay   time.Duration
	triples []Triple
}

func (r *countingRepo) LoadTriples(ctx context.Context) ([]Triple, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.triples, nil
}

func TestSourceLoadsOnceForConcurrentCallers(t *testing.T) {
	repo := &countingRepo{triples: DevTriples(), delay: 20 * time.Millisecond}
	src := NewSource(repo, time.Second, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := src.Resolver(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, r)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, repo.calls.Load())
	status, err := src.Status()
	assert.Equal(t, StatusReady, status)
	assert.NoError(t, err)
}

func TestSourceFailureIsDistinctFromEmpty(t *testing.T) {
	repo := &countingRepo{err: errors.New("connection refused")}
	src := NewSource(repo, time.Second, logging.Discard())

	_, err := src.Resolver(context.Background())
	assert.ErrorIs(t, err, ErrLocationDataUnavailable)
	status, _ := src.Status()
	assert.Equal(t, StatusFailed, status)

	repo.err = nil
	repo.triples = DevTriples()
	r, err := src.Resolver(context.Background())
	require.NoError(t, err, "failed loads are retried")
	assert.NotEmpty(t, r.Districts())
}

func TestSourceTimeout(t *testing.T) {
	repo := &countingRepo{delay: time.Second, triples: DevTriples()}
	src := NewSource(repo, 10*time.Millisecond, logging.Discard())

	_, err := src.Resolver(context.Background())
	assert.ErrorIs(t, err, ErrLoadTimeout)
}

func TestHandlerReportsUnavailable(t *testing.T) {
	src := NewSource(&countingRepo{err: errors.New("down")}, time.Second, logging.Discard())
	h := NewHandler(src)
	app := fiber.New()
	app.Get("/locations/districts", h.Districts)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/locations/districts", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandlerMandals(t *testing.T) {
	src := NewSource(NewMemoryRepository(DevTriples()...), time.Second, logging.Discard())
	h := NewHandler(src)
	app := fiber.New()
	app.Get("/locations/mandals", h.Mandals)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/locations/mandals?district=Warangal", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
