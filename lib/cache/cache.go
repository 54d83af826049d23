package cache

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
)

var Logger = logger.GetLogger("cache")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Entry is a single cached value
type Entry struct {
	// Value is the resolved (deserialized) value
	Value any
	// Timestamp of the version the value was read at (0 = unknown)
	Timestamp float64
}

// ICache is a bounded mapping from key to Entry.
// All implementations are safe for concurrent use.
type ICache interface {
	// Get returns the entry for key and marks it as recently used.
	Get(key string) (entry Entry, ok bool)
	// Set inserts or replaces the entry for key, evicting other entries if the bound is reached.
	Set(key string, entry Entry)
	// Evict removes the entry for key. Evicting an absent key is not an error.
	Evict(key string)
	// Contains reports whether key is cached without updating its recency.
	Contains(key string) bool
	// Size returns the configured bound (0 = caching disabled).
	Size() int
	// Purge removes all entries.
	Purge()
}

// --------------------------------------------------------------------------
// Factory
// --------------------------------------------------------------------------

const (
	PolicyLRU       = "lru"
	PolicyRistretto = "ristretto"
)

// New creates a cache with the given policy holding at most size entries.
// A size <= 0 returns a cache that never stores anything.
func New(policy string, size int) (ICache, error) {
	if size <= 0 {
		return noopCache{}, nil
	}

	switch strings.ToLower(policy) {
	case "", PolicyLRU:
		return newLRUCache(size)
	case PolicyRistretto:
		return newRistrettoCache(size)
	default:
		return nil, fmt.Errorf("unknown cache policy %q (expected %s or %s)", policy, PolicyLRU, PolicyRistretto)
	}
}

// --------------------------------------------------------------------------
// Disabled cache
// --------------------------------------------------------------------------

type noopCache struct{}

func (noopCache) Get(string) (Entry, bool) { return Entry{}, false }
func (noopCache) Set(string, Entry)        {}
func (noopCache) Evict(string)             {}
func (noopCache) Contains(string) bool     { return false }
func (noopCache) Size() int                { return 0 }
func (noopCache) Purge()                   {}
