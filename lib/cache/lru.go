package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// lruCache implements ICache with strict least recently used eviction
type lruCache struct {
	size int
	c    *lru.Cache[string, Entry]
}

func newLRUCache(size int) (ICache, error) {
	c, err := lru.NewWithEvict[string, Entry](size, func(key string, _ Entry) {
		Logger.Debugf("lru evicted key='%s'", key)
	})
	if err != nil {
		return nil, err
	}
	return &lruCache{size: size, c: c}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see cache.ICache)
// --------------------------------------------------------------------------

func (l *lruCache) Get(key string) (Entry, bool) {
	return l.c.Get(key)
}

func (l *lruCache) Set(key string, entry Entry) {
	l.c.Add(key, entry)
}

func (l *lruCache) Evict(key string) {
	l.c.Remove(key)
}

func (l *lruCache) Contains(key string) bool {
	return l.c.Contains(key)
}

func (l *lruCache) Size() int {
	return l.size
}

func (l *lruCache) Purge() {
	l.c.Purge()
}
