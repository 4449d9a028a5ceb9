package otp

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ErrTicketNotFound is returned for unknown or expired tickets.
var ErrTicketNotFound = errors.New("verification ticket not found")

const sweepSchedule = "@every 1m"

type ticket struct {
	machine *Machine
	touched time.Time
}

// Registry holds in-progress verification machines by ticket id. Tickets
// idle for longer than the TTL are discarded.
type Registry struct {
	mu      sync.Mutex
	tickets map[string]*ticket
	factory func() *Machine
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	cron    *cron.Cron
}

func NewRegistry(factory func() *Machine, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		tickets: make(map[string]*ticket),
		factory: factory,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Create registers a fresh machine and returns its ticket id.
func (r *Registry) Create() (string, *Machine) {
	id := uuid.NewString()
	m := r.factory()
	r.mu.Lock()
	r.tickets[id] = &ticket{machine: m, touched: r.now()}
	r.mu.Unlock()
	return id, m
}

// Get returns the machine for id and refreshes its idle timer.
func (r *Registry) Get(id string) (*Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	now := r.now()
	if r.expired(t, now) {
		delete(r.tickets, id)
		return nil, ErrTicketNotFound
	}
	t.touched = now
	return t.machine, nil
}

// Remove drops the ticket; unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.tickets, id)
	r.mu.Unlock()
}

// Len returns the number of live and not yet swept tickets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickets)
}

// Sweep removes expired tickets and returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, t := range r.tickets {
		if r.expired(t, now) {
			t.machine.Reset()
			delete(r.tickets, id)
			n++
		}
	}
	return n
}

func (r *Registry) expired(t *ticket, now time.Time) bool {
	if t.machine.Snapshot().InFlight {
		return false
	}
	return now.Sub(t.touched) > r.ttl
}

// Start schedules the periodic sweep.
func (r *Registry) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(sweepSchedule, func() {
		if n := r.Sweep(); n > 0 {
			r.logger.Info("expired otp tickets swept", slog.Int("count", n))
		}
	}); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop halts the sweep and waits for a running one to finish.
func (r *Registry) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
