package metal

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// LibraryCache deduplicates library builds by name. Concurrent callers
// asking for the same name share a single build and compile; later callers
// hit the map under a read lock.
type LibraryCache struct {
	compile func(name, source string) (Library, error)

	group singleflight.Group
	mu    sync.RWMutex
	libs  map[string]Library
}

// NewLibraryCache returns a cache that turns built source text into
// libraries with compile.
func NewLibraryCache(compile func(name, source string) (Library, error)) *LibraryCache {
	return &LibraryCache{compile: compile, libs: make(map[string]Library)}
}

// Get returns the library cached under name, invoking build and then compile
// at most once per name. Errors are not cached; the next call retries.
func (c *LibraryCache) Get(name string, build func() (string, error)) (Library, error) {
	c.mu.RLock()
	lib, ok := c.libs[name]
	c.mu.RUnlock()
	if ok {
		return lib, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.libs[name]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
		source, err := build()
		if err != nil {
			return nil, err
		}
		built, err := c.compile(name, source)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.libs[name] = built
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Library), nil
}
