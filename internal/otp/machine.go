// Package otp drives phone verification: number entry, code dispatch, code
// verification and the resend cooldown.
package otp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nagarika-mitra/nagarika_mitra/internal/phone"
)

// CodeLength is the number of digits in a passcode.
const CodeLength = 6

// DefaultCooldown gates Resend after each successful dispatch.
const DefaultCooldown = 30 * time.Second

var (
	ErrInvalidFormat     = phone.ErrInvalidFormat
	ErrInvalidCodeFormat = errors.New("code must be exactly 6 digits")
	ErrDispatchFailed    = errors.New("code dispatch failed")
	ErrCodeRejected      = errors.New("code rejected")
	ErrCooldownActive    = errors.New("resend cooldown active")
	ErrBusy              = errors.New("another request is in flight")
	ErrInvalidState      = errors.New("operation not allowed in current state")
	// ErrStale is returned when a provider call completes after Reset.
	ErrStale = errors.New("result discarded after reset")
)

// State of a Machine.
type State int

const (
	PhoneEntry State = iota
	Dispatching
	AwaitingCode
	Verifying
	StateVerified
)

func (s State) String() string {
	switch s {
	case PhoneEntry:
		return "phone_entry"
	case Dispatching:
		return "dispatching"
	case AwaitingCode:
		return "awaiting_code"
	case Verifying:
		return "verifying"
	case StateVerified:
		return "verified"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sender dispatches a code to an E.164 phone number.
type Sender interface {
	Send(ctx context.Context, phone string) error
}

// Verifier checks a code and returns an identity token on success.
type Verifier interface {
	Verify(ctx context.Context, phone, code string) (string, error)
}

// DispatchResult reports a successful dispatch.
type DispatchResult struct {
	Phone    string
	ResendAt time.Time
}

// Verified carries a phone number whose ownership has been proven.
type Verified struct {
	Phone string
	Token string
}

// DispatchStatus is the ticket-level view of dispatch progress.
type DispatchStatus string

const (
	StatusNotSent  DispatchStatus = "not_sent"
	StatusSent     DispatchStatus = "sent"
	StatusVerified DispatchStatus = "verified"
	StatusFailed   DispatchStatus = "failed"
)

// Snapshot is a consistent copy of the machine's observable state.
type Snapshot struct {
	State    State
	Status   DispatchStatus
	Phone    string
	ResendAt time.Time
	InFlight bool
}

// Option configures a Machine.
type Option func(*Machine)

func WithCooldown(d time.Duration) Option {
	return func(m *Machine) { m.cooldown = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is one verification attempt. At most one provider call is in
// flight at any time; results that arrive after Reset are dropped.
type Machine struct {
	mu       sync.Mutex
	sender   Sender
	verifier Verifier
	now      func() time.Time
	cooldown time.Duration

	state      State
	failed     bool
	phone      string
	code       string
	token      string
	resendAt   time.Time
	inFlight   bool
	generation uint64
}

func NewMachine(sender Sender, verifier Verifier, opts ...Option) *Machine {
	m := &Machine{sender: sender, verifier: verifier, now: time.Now, cooldown: DefaultCooldown}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SubmitPhone normalizes raw and dispatches a code to it.
func (m *Machine) SubmitPhone(ctx context.Context, raw string) (DispatchResult, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return DispatchResult{}, ErrBusy
	}
	if m.state != PhoneEntry {
		m.mu.Unlock()
		return DispatchResult{}, ErrInvalidState
	}
	normalized, err := phone.Normalize(raw)
	if err != nil {
		m.mu.Unlock()
		return DispatchResult{}, err
	}
	m.phone = normalized
	return m.dispatchLocked(ctx)
}

// Resend re-dispatches to the stored number once the cooldown has elapsed.
func (m *Machine) Resend(ctx context.Context) (DispatchResult, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return DispatchResult{}, ErrBusy
	}
	if m.state != AwaitingCode {
		m.mu.Unlock()
		return DispatchResult{}, ErrInvalidState
	}
	if now := m.now(); now.Before(m.resendAt) {
		remaining := m.resendAt.Sub(now).Round(time.Second)
		m.mu.Unlock()
		return DispatchResult{}, fmt.Errorf("%w: retry in %s", ErrCooldownActive, remaining)
	}
	return m.dispatchLocked(ctx)
}

// dispatchLocked must be called with m.mu held; it releases the lock.
func (m *Machine) dispatchLocked(ctx context.Context) (DispatchResult, error) {
	m.state = Dispatching
	m.inFlight = true
	m.code = ""
	gen := m.generation
	target := m.phone
	m.mu.Unlock()

	sendErr := m.sender.Send(ctx, target)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	if gen != m.generation {
		return DispatchResult{}, ErrStale
	}
	if sendErr != nil {
		m.state = PhoneEntry
		m.failed = true
		m.phone = ""
		m.resendAt = time.Time{}
		return DispatchResult{}, fmt.Errorf("%w: %w", ErrDispatchFailed, sendErr)
	}
	m.state = AwaitingCode
	m.failed = false
	m.resendAt = m.now().Add(m.cooldown)
	return DispatchResult{Phone: target, ResendAt: m.resendAt}, nil
}

// SubmitCode verifies code against the stored number. Malformed codes are
// rejected without calling the verifier.
func (m *Machine) SubmitCode(ctx context.Context, code string) (Verified, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return Verified{}, ErrBusy
	}
	if m.state != AwaitingCode {
		m.mu.Unlock()
		return Verified{}, ErrInvalidState
	}
	if !ValidCode(code) {
		m.code = ""
		m.mu.Unlock()
		return Verified{}, ErrInvalidCodeFormat
	}
	m.state = Verifying
	m.inFlight = true
	m.code = code
	gen := m.generation
	target := m.phone
	m.mu.Unlock()

	token, verifyErr := m.verifier.Verify(ctx, target, code)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	if gen != m.generation {
		return Verified{}, ErrStale
	}
	m.code = ""
	if verifyErr != nil {
		m.state = AwaitingCode
		return Verified{}, fmt.Errorf("%w: %w", ErrCodeRejected, verifyErr)
	}
	m.state = StateVerified
	m.token = token
	return Verified{Phone: target, Token: token}, nil
}

// Reset returns to PhoneEntry and discards the number, code and token.
// A call still in flight keeps the machine busy until it returns.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.state = PhoneEntry
	m.failed = false
	m.phone = ""
	m.code = ""
	m.token = ""
	m.resendAt = time.Time{}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Code returns the code currently held for verification, if any.
func (m *Machine) Code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, Status: m.statusLocked(), Phone: m.phone, ResendAt: m.resendAt, InFlight: m.inFlight}
}

func (m *Machine) statusLocked() DispatchStatus {
	switch {
	case m.state == StateVerified:
		return StatusVerified
	case m.state == AwaitingCode || m.state == Verifying:
		return StatusSent
	case m.failed:
		return StatusFailed
	default:
		return StatusNotSent
	}
}

// ValidCode reports whether code is exactly CodeLength ASCII digits.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
