package otp

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const codeKeyPrefix = "otp:v1:"

// incrAttemptsScript counts a failed attempt only while the code is live, so
// an expired key is never recreated without a TTL.
var incrAttemptsScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], "hash") == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// StoredCode is the hashed passcode outstanding for a phone.
type StoredCode struct {
	Hash     string
	Attempts int
}

// CodeStore keeps at most one outstanding code per phone.
type CodeStore interface {
	Save(ctx context.Context, phone, hash string, ttl time.Duration) error
	Load(ctx context.Context, phone string) (StoredCode, error)
	IncrAttempts(ctx context.Context, phone string) (int, error)
	Delete(ctx context.Context, phone string) error
}

// RedisCodeStore stores codes as hashes with a TTL.
type RedisCodeStore struct {
	client *redis.Client
}

func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) Save(ctx context.Context, phone, hash string, ttl time.Duration) error {
	key := codeKeyPrefix + phone
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "hash", hash, "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisCodeStore) Load(ctx context.Context, phone string) (StoredCode, error) {
	fields, err := s.client.HGetAll(ctx, codeKeyPrefix+phone).Result()
	if err != nil {
		return StoredCode{}, err
	}
	hash, ok := fields["hash"]
	if !ok {
		return StoredCode{}, ErrCodeExpired
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return StoredCode{Hash: hash, Attempts: attempts}, nil
}

func (s *RedisCodeStore) IncrAttempts(ctx context.Context, phone string) (int, error) {
	n, err := incrAttemptsScript.Run(ctx, s.client, []string{codeKeyPrefix + phone}).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrCodeExpired
	}
	return n, nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, phone string) error {
	err := s.client.Del(ctx, codeKeyPrefix+phone).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

type memoryCode struct {
	StoredCode
	expiresAt time.Time
}

// MemoryCodeStore is the single-process CodeStore used in development.
type MemoryCodeStore struct {
	mu    sync.Mutex
	now   func() time.Time
	codes map[string]memoryCode
}

func NewMemoryCodeStore(now func() time.Time) *MemoryCodeStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryCodeStore{now: now, codes: make(map[string]memoryCode)}
}

func (s *MemoryCodeStore) Save(_ context.Context, phone, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = memoryCode{StoredCode: StoredCode{Hash: hash}, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Load(_ context.Context, phone string) (StoredCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live(phone)
	if !ok {
		return StoredCode{}, ErrCodeExpired
	}
	return c.StoredCode, nil
}

func (s *MemoryCodeStore) IncrAttempts(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live(phone)
	if !ok {
		return 0, ErrCodeExpired
	}
	c.Attempts++
	s.codes[phone] = c
	return c.Attempts, nil
}

func (s *MemoryCodeStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, phone)
	return nil
}

func (s *MemoryCodeStore) live(phone string) (memoryCode, bool) {
	c, ok := s.codes[phone]
	if !ok {
		return memoryCode{}, false
	}
	if !s.now().Before(c.expiresAt) {
		delete(s.codes, phone)
		return memoryCode{}, false
	}
	return c, true
}
