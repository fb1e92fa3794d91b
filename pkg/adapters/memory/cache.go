package memory

import (
	"context"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Cache implements ports.ExperienceCache in memory.
// Safe for concurrent use.
type Cache struct {
	data map[string]*domain.Experience
	mu   sync.RWMutex
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*domain.Experience),
	}
}

// Put stores a shallow copy; experiences are never mutated after decode.
func (c *Cache) Put(ctx context.Context, key string, exp *domain.Experience) error {
	copied := *exp
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = &copied
	return nil
}

// Get returns a copy so callers cannot swap fields on the cached value.
func (c *Cache) Get(ctx context.Context, key string) (*domain.Experience, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	exp, ok := c.data[key]
	if !ok {
		return nil, domain.ErrExperienceNotFound
	}
	ret := *exp
	return &ret, nil
}

// Delete removes the entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
