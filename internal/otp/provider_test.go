package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/nagarika-mitra/nagarika_mitra/internal/logging"
)

type recordingSMS struct {
	phone, code string
	err         error
}

func (r *recordingSMS) SendOTP(_ context.Context, phone, code string) error {
	r.phone, r.code = phone, code
	return r.err
}

type stubIssuer struct{ issued []string }

func (s *stubIssuer) IssueToken(_ context.Context, phone string) (string, error) {
	s.issued = append(s.issued, phone)
	return "jwt-" + phone, nil
}

type ProviderSuite struct {
	suite.Suite
	mr       *miniredis.Miniredis
	client   *redis.Client
	sms      *recordingSMS
	issuer   *stubIssuer
	provider *CodeProvider
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderSuite))
}

func (s *ProviderSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.sms = &recordingSMS{}
	s.issuer = &stubIssuer{}
	s.provider = NewCodeProvider(NewRedisCodeStore(s.client), s.sms, s.issuer, 5*time.Minute, 3, logging.Discard())
	s.provider.cost = bcrypt.MinCost
}

func (s *ProviderSuite) TearDownTest() {
	s.client.Close()
}

func (s *ProviderSuite) TestSendStoresHashNotCode() {
	ctx := context.Background()
	s.Require().NoError(s.provider.Send(ctx, "+919812345678"))

	s.Equal("919812345678", s.sms.phone)
	s.Len(s.sms.code, CodeLength)

	stored := s.mr.HGet(codeKeyPrefix+"+919812345678", "hash")
	s.NotEmpty(stored)
	s.NotEqual(s.sms.code, stored)
	s.Equal(5*time.Minute, s.mr.TTL(codeKeyPrefix+"+919812345678"))
}

func (s *ProviderSuite) TestVerifyConsumesCodeAndIssuesToken() {
	ctx := context.Background()
	s.Require().NoError(s.provider.Send(ctx, "+919812345678"))

	token, err := s.provider.Verify(ctx, "+919812345678", s.sms.code)
	s.Require().NoError(err)
	s.Equal("jwt-+919812345678", token)
	s.False(s.mr.Exists(codeKeyPrefix + "+919812345678"))

	_, err = s.provider.Verify(ctx, "+919812345678", s.sms.code)
	s.ErrorIs(err, ErrCodeExpired, "codes are single use")
}

func (s *ProviderSuite) TestWrongCodesLockAfterMaxAttempts() {
	ctx := context.Background()
	s.Require().NoError(s.provider.Send(ctx, "+919812345678"))
	wrong := "000000"
	if s.sms.code == wrong {
		wrong = "111111"
	}

	_, err := s.provider.Verify(ctx, "+919812345678", wrong)
	s.ErrorIs(err, ErrWrongCode)
	_, err = s.provider.Verify(ctx, "+919812345678", wrong)
	s.ErrorIs(err, ErrWrongCode)
	_, err = s.provider.Verify(ctx, "+919812345678", wrong)
	s.ErrorIs(err, ErrTooManyAttempts)

	_, err = s.provider.Verify(ctx, "+919812345678", s.sms.code)
	s.ErrorIs(err, ErrCodeExpired)
	s.Empty(s.issuer.issued)
}

func (s *ProviderSuite) TestExpiredCode() {
	ctx := context.Background()
	s.Require().NoError(s.provider.Send(ctx, "+919812345678"))
	s.mr.FastForward(6 * time.Minute)

	_, err := s.provider.Verify(ctx, "+919812345678", s.sms.code)
	s.ErrorIs(err, ErrCodeExpired)
}

func (s *ProviderSuite) TestUndeliveredCodeIsDiscarded() {
	s.sms.err = errors.New("gateway down")
	err := s.provider.Send(context.Background(), "+919812345678")
	s.Error(err)
	s.False(s.mr.Exists(codeKeyPrefix + "+919812345678"))
}

func TestMemoryCodeStoreExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryCodeStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "+919812345678", "h", time.Minute))
	n, err := store.IncrAttempts(ctx, "+919812345678")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Load(ctx, "+919812345678")
	require.NoError(t, err)
	assert.Equal(t, StoredCode{Hash: "h", Attempts: 1}, got)

	now = now.Add(time.Minute)
	_, err = store.Load(ctx, "+919812345678")
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestRedisCodeStoreIncrAttemptsAfterExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisCodeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "+919812345678", "h", time.Second))
	n, err := store.IncrAttempts(ctx, "+919812345678")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mr.FastForward(2 * time.Second)
	_, err = store.IncrAttempts(ctx, "+919812345678")
	assert.ErrorIs(t, err, ErrCodeExpired)
	assert.False(t, mr.Exists(codeKeyPrefix+"+919812345678"), "expired code must not be recreated")
}

// The provider plugged into a machine end to end.
func TestMachineWithCodeProvider(t *testing.T) {
	sms := &recordingSMS{}
	p := NewCodeProvider(NewMemoryCodeStore(nil), sms, &stubIssuer{}, time.Minute, 5, logging.Discard())
	p.cost = bcrypt.MinCost
	m := NewMachine(p, p)
	ctx := context.Background()

	_, err := m.SubmitPhone(ctx, "7012345678")
	require.NoError(t, err)

	v, err := m.SubmitCode(ctx, sms.code)
	require.NoError(t, err)
	assert.Equal(t, "+917012345678", v.Phone)
	assert.Equal(t, "jwt-+917012345678", v.Token)
}
