package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanasol-ws/dualauth/internal/clock"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// DefaultKeyPrefix namespaces this service's keys in a shared Redis.
const DefaultKeyPrefix = "dualauth:"

// RedisStore is a Redis-backed session registry for multi-instance
// deployments. Records are stored as JSON with a TTL derived from their
// expiry, so Redis evicts what the service would otherwise have to sweep.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	clock     clock.Clock
}

// RedisStoreConfig configures the Redis session registry
type RedisStoreConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string

	// Username and Password are optional ACL credentials
	Username string
	Password string

	// DB selects the Redis logical database
	DB int

	// KeyPrefix namespaces keys (defaults to DefaultKeyPrefix)
	KeyPrefix string

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s)
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Clock is an optional time source (defaults to system clock)
	Clock clock.Clock
}

// NewRedisStore creates a Redis-backed session registry and verifies the
// connection.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		clock:     clk,
	}, nil
}

// PutSession implements Store
func (s *RedisStore) PutSession(ctx context.Context, record *SessionRecord) error {
	return s.put(ctx, s.sessionKey(record.PlayerID), record, record.ExpiresAt)
}

// GetSession implements Store
func (s *RedisStore) GetSession(ctx context.Context, playerID string) (*SessionRecord, bool, error) {
	var record SessionRecord
	ok, err := s.get(ctx, s.sessionKey(playerID), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

// DeleteSession implements Store
func (s *RedisStore) DeleteSession(ctx context.Context, playerID string) error {
	if err := s.client.Del(ctx, s.sessionKey(playerID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// PutGrant implements Store
func (s *RedisStore) PutGrant(ctx context.Context, record *GrantRecord) error {
	return s.put(ctx, s.grantKey(record.TokenID), record, record.ExpiresAt)
}

// GetGrant implements Store
func (s *RedisStore) GetGrant(ctx context.Context, tokenID string) (*GrantRecord, bool, error) {
	var record GrantRecord
	ok, err := s.get(ctx, s.grantKey(tokenID), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

// DeleteGrant implements Store
func (s *RedisStore) DeleteGrant(ctx context.Context, tokenID string) error {
	if err := s.client.Del(ctx, s.grantKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) put(ctx context.Context, key string, record any, expiresAt int64) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	ttl := time.Duration(0)
	if expiresAt != 0 {
		ttl = time.Unix(expiresAt, 0).Sub(s.clock.Now())
		if ttl <= 0 {
			// Already expired; nothing worth storing
			return nil
		}
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string, record any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, record); err != nil {
		return false, fmt.Errorf("failed to unmarshal record at %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) sessionKey(playerID string) string {
	return s.keyPrefix + "session:" + playerID
}

func (s *RedisStore) grantKey(tokenID string) string {
	return s.keyPrefix + "grant:" + tokenID
}
