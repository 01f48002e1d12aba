package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/mostrador/internal/config"
)

// ErrNotFound is returned when no session is stored under a key.
var ErrNotFound = errors.New("session not found")

const keyNamespace = "pos"

// Store persists order sessions between requests and across restarts.
// Implementations must treat concurrent writers as last-write-wins.
type Store interface {
	Load(ctx context.Context, owner string) (*Session, error)
	Save(ctx context.Context, owner string, sess *Session) error
	Delete(ctx context.Context, owner string) error

	// AcquireSubmitLock grabs the per-owner submission lock; false means a
	// submission is already in flight.
	AcquireSubmitLock(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	ReleaseSubmitLock(ctx context.Context, owner string) error
}

// RedisStore keeps sessions in Redis as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies connectivity.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context, owner string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(owner)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, owner string, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, sessionKey(owner), raw, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, owner string) error {
	return s.client.Del(ctx, sessionKey(owner)).Err()
}

func (s *RedisStore) AcquireSubmitLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, submitLockKey(owner), "1", ttl).Result()
}

func (s *RedisStore) ReleaseSubmitLock(ctx context.Context, owner string) error {
	return s.client.Del(ctx, submitLockKey(owner)).Err()
}

// Close shuts down the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sessionKey(owner string) string {
	return buildKey("session", owner)
}

func submitLockKey(owner string) string {
	return buildKey("submit", owner)
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	locks    map[string]struct{}
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		locks:    make(map[string]struct{}),
	}
}

func (s *MemoryStore) Load(ctx context.Context, owner string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.sessions[owner]
	if !ok {
		return nil, ErrNotFound
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *MemoryStore) Save(ctx context.Context, owner string, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[owner] = raw
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, owner)
	return nil
}

func (s *MemoryStore) AcquireSubmitLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[owner]; held {
		return false, nil
	}
	s.locks[owner] = struct{}{}
	return true, nil
}

func (s *MemoryStore) ReleaseSubmitLock(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, owner)
	return nil
}
