package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nagarika-mitra/nagarika_mitra/internal/otp/sms"
	"github.com/nagarika-mitra/nagarika_mitra/internal/phone"
)

var (
	ErrCodeExpired     = errors.New("code expired or not issued")
	ErrWrongCode       = errors.New("incorrect code")
	ErrTooManyAttempts = errors.New("too many attempts")
)

// TokenIssuer turns a verified phone into a backend session token.
type TokenIssuer interface {
	IssueToken(ctx context.Context, phone string) (string, error)
}

// CodeProvider is the Sender and Verifier backed by a CodeStore and an SMS client.
type CodeProvider struct {
	store       CodeStore
	client      sms.Client
	issuer      TokenIssuer
	logger      *slog.Logger
	ttl         time.Duration
	maxAttempts int
	cost        int
	generate    func() (string, error)
}

func NewCodeProvider(store CodeStore, client sms.Client, issuer TokenIssuer, ttl time.Duration, maxAttempts int, logger *slog.Logger) *CodeProvider {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &CodeProvider{
		store:       store,
		client:      client,
		issuer:      issuer,
		logger:      logger,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		cost:        bcrypt.DefaultCost,
		generate:    GenerateCode,
	}
}

// Send issues a fresh code for phone, replacing any outstanding one.
func (p *CodeProvider) Send(ctx context.Context, e164 string) error {
	code, err := p.generate()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), p.cost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	if err := p.store.Save(ctx, e164, string(hash), p.ttl); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	if err := p.client.SendOTP(ctx, phone.Digits(e164), code); err != nil {
		if delErr := p.store.Delete(ctx, e164); delErr != nil {
			p.logger.Warn("discard undelivered code failed", slog.String("phone", phone.Mask(e164)), slog.Any("error", delErr))
		}
		return err
	}
	p.logger.Info("otp dispatched", slog.String("phone", phone.Mask(e164)))
	return nil
}

// Verify checks code for phone and, on success, consumes it and returns a
// session token.
func (p *CodeProvider) Verify(ctx context.Context, e164, code string) (string, error) {
	stored, err := p.store.Load(ctx, e164)
	if err != nil {
		return "", err
	}
	if stored.Attempts >= p.maxAttempts {
		_ = p.store.Delete(ctx, e164)
		return "", ErrTooManyAttempts
	}

	if err := bcrypt.CompareHashAndPassword([]byte(stored.Hash), []byte(code)); err != nil {
		attempts, incErr := p.store.IncrAttempts(ctx, e164)
		if incErr != nil {
			return "", fmt.Errorf("record attempt: %w", incErr)
		}
		if attempts >= p.maxAttempts {
			_ = p.store.Delete(ctx, e164)
			return "", ErrTooManyAttempts
		}
		return "", ErrWrongCode
	}

	if err := p.store.Delete(ctx, e164); err != nil {
		return "", fmt.Errorf("consume code: %w", err)
	}
	token, err := p.issuer.IssueToken(ctx, e164)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	p.logger.Info("otp verified", slog.String("phone", phone.Mask(e164)))
	return token, nil
}

// GenerateCode returns a uniformly random 6-digit code.
func GenerateCode() (string, error) {
	b := make([]byte, CodeLength)
	out := make([]byte, CodeLength)
	for i := 0; i < CodeLength; {
		if _, err := rand.Read(b[:1]); err != nil {
			return "", err
		}
		// reject 250..255 so every digit is equally likely
		if b[0] >= 250 {
			continue
		}
		out[i] = '0' + b[0]%10
		i++
	}
	return string(out), nil
}
