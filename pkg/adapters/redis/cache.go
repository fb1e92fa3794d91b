package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Cache implements ports.ExperienceCache using Redis. Entries are indexed in a
// sorted set scored by expiry so Keys can prune lazily.
type Cache struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Cache.
type Option func(*Cache)

// WithTTL sets the expiration for cached experiences.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// NewCache creates a cache with its own client.
func NewCache(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewCacheFromClient(rdb, opts...)
}

// NewCacheFromClient creates a cache from an existing client.
func NewCacheFromClient(client *backend.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: "waypoint:experience:",
		ttl:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client returns the underlying client so other adapters can share it.
func (c *Cache) Client() *backend.Client {
	return c.client
}

func (c *Cache) key(id string) string {
	return c.prefix + id
}

func (c *Cache) indexKey() string {
	return c.prefix + "index"
}

// Put stores the experience. The instance id is not part of the document.
func (c *Cache) Put(ctx context.Context, id string, exp *domain.Experience) error {
	data, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("failed to marshal experience: %w", err)
	}

	// Score = expiry; 0 TTL means never.
	score := float64(time.Now().Add(c.ttl).Unix())
	if c.ttl == 0 {
		score = 4102444800
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.key(id), data, c.ttl)
	pipe.ZAdd(ctx, c.indexKey(), backend.Z{Score: score, Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Get returns domain.ErrExperienceNotFound on a miss.
func (c *Cache) Get(ctx context.Context, id string) (*domain.Experience, error) {
	val, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrExperienceNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return domain.DecodeExperience(val)
}

// Delete removes the entry. Deleting a missing entry is not an error.
func (c *Cache) Delete(ctx context.Context, id string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, c.key(id))
	pipe.ZRem(ctx, c.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Keys lists cached experience ids, pruning expired index entries first.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := c.client.ZRemRangeByScore(ctx, c.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired entries: %w", err)
	}

	ids, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cached experiences: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
