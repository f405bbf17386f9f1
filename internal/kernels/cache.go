package kernels

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/born-ml/gpgpu/internal/logging"
	"github.com/born-ml/gpgpu/internal/shader"
)

// Cache holds built programs by key. Concurrent requests for a missing key
// share one build. Failed builds are not cached.
type Cache struct {
	mu       sync.RWMutex
	programs map[string]*shader.Program
	group    singleflight.Group
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{programs: make(map[string]*shader.Program)}
}

// GetOrBuild returns the program cached under key, calling build to make
// it on a miss. Every caller gets the same program; callers that need to
// change it must Clone it first.
func (c *Cache) GetOrBuild(key string, build func() (*shader.Program, error)) (*shader.Program, error) {
	c.mu.RLock()
	if prog, exists := c.programs[key]; exists {
		c.mu.RUnlock()
		return prog, nil
	}
	c.mu.RUnlock()

	v, err, shared := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		prog, exists := c.programs[key]
		c.mu.RUnlock()
		if exists {
			return prog, nil
		}
		prog, err := build()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.programs[key] = prog
		c.mu.Unlock()
		return prog, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Logger().Debug("kernels: shared concurrent build", "key", key)
	}
	return v.(*shader.Program), nil
}

// Get returns the program cached under key.
func (c *Cache) Get(key string) (*shader.Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prog, ok := c.programs[key]
	return prog, ok
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// Clear drops every cached program.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.programs = make(map[string]*shader.Program)
	c.mu.Unlock()
}
