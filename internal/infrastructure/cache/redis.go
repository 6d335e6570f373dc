package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bimakw/lp-zapper/internal/domain/entities"
)

// DefaultFeeConfigKey is where the engine's fee configuration lives
const DefaultFeeConfigKey = "zapper:fee_config"

// ConfigStore persists the engine-owned fee configuration
type ConfigStore interface {
	// LoadFeeConfig returns nil, nil when nothing has been stored yet
	LoadFeeConfig(ctx context.Context) (*entities.FeeConfig, error)
	SaveFeeConfig(ctx context.Context, cfg *entities.FeeConfig) error
}

// NewRedisClient connects to Redis and checks the connection
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisConfigStore implements ConfigStore using Redis
type RedisConfigStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisConfigStore creates a store under key (DefaultFeeConfigKey if empty)
func NewRedisConfigStore(client redis.Cmdable, key string) *RedisConfigStore {
	if key == "" {
		key = DefaultFeeConfigKey
	}
	return &RedisConfigStore{client: client, key: key}
}

func (s *RedisConfigStore) LoadFeeConfig(ctx context.Context) (*entities.FeeConfig, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load fee config: %w", err)
	}

	var cfg entities.FeeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode fee config: %w", err)
	}
	return &cfg, nil
}

func (s *RedisConfigStore) SaveFeeConfig(ctx context.Context, cfg *entities.FeeConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	// no TTL: the configuration outlives restarts
	return s.client.Set(ctx, s.key, data, 0).Err()
}

// InMemoryConfigStore implements ConfigStore in memory (for testing/development)
type InMemoryConfigStore struct {
	mu  sync.RWMutex
	cfg *entities.FeeConfig
}

// NewInMemoryConfigStore creates an empty in-memory store
func NewInMemoryConfigStore() *InMemoryConfigStore {
	return &InMemoryConfigStore{}
}

func (s *InMemoryConfigStore) LoadFeeConfig(ctx context.Context) (*entities.FeeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil, nil
	}
	cfg := *s.cfg
	return &cfg, nil
}

func (s *InMemoryConfigStore) SaveFeeConfig(ctx context.Context, cfg *entities.FeeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cfg
	s.cfg = &copied
	return nil
}
