package session

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

	"github.com/nagarika-mitra/nagarika_mitra/internal/auth"
	"github.com/nagarika-mitra/nagarika_mitra/internal/config"
	"github.com/nagarika-mitra/nagarika_mitra/internal/identity"
	"github.com/nagarika-mitra/nagarika_mitra/internal/logging"
)

type failingCitizens struct {
	identity.Repository
	upsertErr error
	upserts   int
}

func (f *failingCitizens) UpsertCitizen(ctx context.Context, c identity.Citizen) (identity.Citizen, error) {
	f.upserts++
	if f.upsertErr != nil {
		return identity.Citizen{}, f.upsertErr
	}
	return f.Repository.UpsertCitizen(ctx, c)
}

type StoreSuite struct {
	suite.Suite
	now      time.Time
	authSvc  *auth.Service
	citizens *failingCitizens
	cache    *MemoryCache
	manager  *Manager
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.now = time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	cfg := config.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	s.authSvc = auth.NewService(cfg, auth.NewMemoryUserRepository(), auth.NewMemorySessionRegistry(clock)).WithClock(clock)
	s.citizens = &failingCitizens{Repository: identity.NewMemoryRepository()}
	s.cache = NewMemoryCache()
	s.manager = NewManager(s.authSvc, s.citizens, s.cache, time.Second, logging.Discard(), nil)
}

func (s *StoreSuite) token(phone string) string {
	sess, err := s.authSvc.Establish(context.Background(), phone)
	s.Require().NoError(err)
	return sess.Token
}

func (s *StoreSuite) citizen() *identity.Citizen {
	return &identity.Citizen{
		Name: "Anitha", Age: 34, Gender: identity.GenderFemale, PhoneNumber: "+919812345678",
		District: "Hyderabad", Mandal: "Secunderabad", Village: "Village1",
	}
}

func (s *StoreSuite) TestNoTokenIsAnonymous() {
	st := s.manager.Open("")
	s.Equal(Uninitialized, st.State())
	s.NoError(st.Restore(context.Background()))
	s.Equal(Anonymous, st.State())
}

func (s *StoreSuite) TestFreshSessionAwaitsProfile() {
	st := s.manager.Open(s.token("+919812345678"))
	s.Require().NoError(st.Restore(context.Background()))
	s.Equal(AwaitingProfile, st.State())
	s.False(st.IsAuthenticated())
	p, ok := st.Principal()
	s.True(ok)
	s.Equal("+919812345678", p.Phone)
}

func (s *StoreSuite) TestCitizenLoginAndReload() {
	ctx := context.Background()
	tok := s.token("+919812345678")

	st := s.manager.Open(tok)
	s.Require().NoError(st.Restore(ctx))
	bound, err := st.Login(ctx, s.citizen())
	s.Require().NoError(err)
	s.Equal(Authenticated, st.State())
	c := bound.(*identity.Citizen)
	s.NotEmpty(c.ID)
	s.NotEmpty(c.AuthUserID)

	reloaded := s.manager.Open(tok)
	s.Require().NoError(reloaded.Restore(ctx))
	s.Equal(Authenticated, reloaded.State())
	id, ok := reloaded.Identity()
	s.Require().True(ok)
	s.Equal(identity.RoleCitizen, id.Role())
	s.Equal(c.ID, id.Summary().ID)
}

func (s *StoreSuite) TestCitizenPersistenceFailureLeavesStoreUnchanged() {
	ctx := context.Background()
	st := s.manager.Open(s.token("+919812345678"))
	s.Require().NoError(st.Restore(ctx))

	s.citizens.upsertErr = errors.New("connection reset")
	_, err := st.Login(ctx, s.citizen())
	s.ErrorIs(err, ErrPersistence)
	s.Equal(AwaitingProfile, st.State())
	_, ok := st.Identity()
	s.False(ok)

	_, err = s.cache.Get(ctx, Scope(st.Token()), IdentityKey)
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *StoreSuite) TestOfficialLoginWritesNoCitizenRow() {
	ctx := context.Background()
	tok := s.token("+919900000001")
	st := s.manager.Open(tok)
	s.Require().NoError(st.Restore(ctx))

	official := &identity.Official{ID: "emp-rev-001", Name: "Rajesh Kumar", Department: "Revenue", EmployeeID: "REV001", PhoneNumber: "+919900000001", District: "Hyderabad"}
	_, err := st.Login(ctx, official)
	s.Require().NoError(err)
	s.Equal(Authenticated, st.State())
	s.Zero(s.citizens.upserts)

	reloaded := s.manager.Open(tok)
	s.Require().NoError(reloaded.Restore(ctx))
	s.Equal(Authenticated, reloaded.State())
	id, _ := reloaded.Identity()
	o, ok := id.(*identity.Official)
	s.Require().True(ok)
	s.Equal("REV001", o.EmployeeID)
	s.Equal("Hyderabad", o.District)
}

func (s *StoreSuite) TestExpiredSessionDiscardsCache() {
	ctx := context.Background()
	tok := s.token("+919812345678")
	st := s.manager.Open(tok)
	s.Require().NoError(st.Restore(ctx))
	_, err := st.Login(ctx, s.citizen())
	s.Require().NoError(err)

	s.now = s.now.Add(2 * time.Hour)
	reloaded := s.manager.Open(tok)
	s.Require().NoError(reloaded.Restore(ctx))
	s.Equal(Anonymous, reloaded.State())
	_, ok := reloaded.Identity()
	s.False(ok)

	_, err = s.cache.Get(ctx, Scope(tok), IdentityKey)
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *StoreSuite) TestLogout() {
	ctx := context.Background()
	tok := s.token("+919812345678")
	st := s.manager.Open(tok)
	s.Require().NoError(st.Restore(ctx))
	_, err := st.Login(ctx, s.citizen())
	s.Require().NoError(err)

	s.NoError(st.Logout(ctx))
	s.Equal(Anonymous, st.State())

	_, err = s.authSvc.Current(ctx, tok)
	s.ErrorIs(err, auth.ErrSessionExpired)

	reloaded := s.manager.Open(tok)
	s.Require().NoError(reloaded.Restore(ctx))
	s.Equal(Anonymous, reloaded.State())
}

func (s *StoreSuite) TestLoginRequiresBackendSession() {
	st := s.manager.Open("")
	s.Require().NoError(st.Restore(context.Background()))
	_, err := st.Login(context.Background(), s.citizen())
	s.ErrorIs(err, ErrInvalidState)
}

type slowBackend struct {
	release chan struct{}
}

func (b *slowBackend) Current(ctx context.Context, _ string) (auth.Principal, error) {
	select {
	case <-b.release:
		return auth.Principal{AuthUserID: "u1", SessionID: "s1", Phone: "+919812345678"}, nil
	case <-ctx.Done():
		return auth.Principal{}, ctx.Err()
	}
}

func (b *slowBackend) Invalidate(context.Context, string) error { return nil }

func TestRestoreTimeoutIsRecoverable(t *testing.T) {
	backend := &slowBackend{release: make(chan struct{})}
	m := NewManager(backend, identity.NewMemoryRepository(), NewMemoryCache(), 20*time.Millisecond, logging.Discard(), nil)
	st := m.Open("token")

	err := st.Restore(context.Background())
	assert.ErrorIs(t, err, ErrLoadTimeout)
	assert.Equal(t, Error, st.State())
	assert.ErrorIs(t, st.Err(), ErrLoadTimeout)

	close(backend.release)
	require.NoError(t, st.Restore(context.Background()))
	assert.Equal(t, AwaitingProfile, st.State())
}

func TestRedisCacheScopesByToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	c := NewRedisCache(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, Scope("a"), IdentityKey, []byte(`{"role":"citizen"}`)))
	_, err := c.Get(ctx, Scope("b"), IdentityKey)
	assert.ErrorIs(t, err, ErrCacheMiss)

	v, err := c.Get(ctx, Scope("a"), IdentityKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"citizen"}`, string(v))
	assert.Equal(t, time.Hour, mr.TTL(cachePrefix+Scope("a")+":"+IdentityKey))

	require.NoError(t, c.Delete(ctx, Scope("a"), IdentityKey, RosterKey))
	_, err = c.Get(ctx, Scope("a"), IdentityKey)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManagerProfileRequired(t *testing.T) {
	cfg := config.Config{JWTSecret: "secret", SessionTTL: time.Hour}
	authSvc := auth.NewService(cfg, auth.NewMemoryUserRepository(), auth.NewMemorySessionRegistry(nil))
	m := NewManager(authSvc, identity.NewMemoryRepository(), NewMemoryCache(), time.Second, logging.Discard(), nil)

	sess, err := authSvc.Establish(context.Background(), "+919812345678")
	require.NoError(t, err)
	required, err := m.ProfileRequired(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.True(t, required)
}
