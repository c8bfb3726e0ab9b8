package orders

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// idempotencyTTL is how long a finished response is replayed.
	idempotencyTTL = 24 * time.Hour
	// lockTTL bounds a pending reservation whose request never finished.
	lockTTL = 30 * time.Second
	// reserveAttempts caps retries when a key expires mid-reserve.
	reserveAttempts = 3
)

// IdempotencyRecord is what is kept per Idempotency-Key.
type IdempotencyRecord struct {
	RequestHash string          `json:"requestHash"`
	Done        bool            `json:"done"`
	Status      int             `json:"status,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// IdempotencyStore reserves keys and remembers finished responses.
type IdempotencyStore interface {
	// Reserve claims key for a request with the given hash. When the key is
	// already taken the existing record is returned and nothing is written.
	Reserve(ctx context.Context, key, requestHash string) (*IdempotencyRecord, error)
	Complete(ctx context.Context, key string, rec IdempotencyRecord) error
	Release(ctx context.Context, key string) error
}

func requestHash(userID string, body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(userID + ":"))
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil)), nil
}

type RedisIdempotency struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisIdempotency(rdb *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{rdb: rdb, prefix: "idem:order:"}
}

func (r *RedisIdempotency) Reserve(ctx context.Context, key, hash string) (*IdempotencyRecord, error) {
	pending, err := json.Marshal(IdempotencyRecord{RequestHash: hash})
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		ok, err := r.rdb.SetNX(ctx, r.prefix+key, pending, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}

		raw, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SetNX and Get
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read idempotency key: %w", err)
		}
		var existing IdempotencyRecord
		if err := json.Unmarshal(raw, &existing); err != nil {
			return nil, fmt.Errorf("decode idempotency record: %w", err)
		}
		return &existing, nil
	}
	return nil, fmt.Errorf("reserve idempotency key %q: gave up after %d attempts", key, reserveAttempts)
}

func (r *RedisIdempotency) Complete(ctx context.Context, key string, rec IdempotencyRecord) error {
	rec.Done = true
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+key, raw, idempotencyTTL).Err()
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

type memRecord struct {
	rec     IdempotencyRecord
	expires time.Time
}

// MemoryIdempotency keeps records in process with the same lifetimes as
// RedisIdempotency.
type MemoryIdempotency struct {
	mu      sync.Mutex
	records map[string]memRecord
	now     func() time.Time
}

func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{records: make(map[string]memRecord), now: time.Now}
}

func (m *MemoryIdempotency) Reserve(_ context.Context, key, hash string) (*IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if existing, ok := m.records[key]; ok && now.Before(existing.expires) {
		return &existing.rec, nil
	}
	m.records[key] = memRecord{rec: IdempotencyRecord{RequestHash: hash}, expires: now.Add(lockTTL)}
	return nil, nil
}

func (m *MemoryIdempotency) Complete(_ context.Context, key string, rec IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Done = true
	m.records[key] = memRecord{rec: rec, expires: m.now().Add(idempotencyTTL)}
	return nil
}

func (m *MemoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}
