package cache

import (
	rc "github.com/dgraph-io/ristretto"
)

// ristrettoCache implements ICache on top of ristretto. Every entry has cost 1,
// so MaxCost is the number of entries.
type ristrettoCache struct {
	size int
	c    *rc.Cache
}

func newRistrettoCache(size int) (ICache, error) {
	c, err := rc.NewCache(&rc.Config{
		NumCounters: int64(size) * 10,
		MaxCost:     int64(size),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ristrettoCache{size: size, c: c}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see cache.ICache)
// --------------------------------------------------------------------------

func (r *ristrettoCache) Get(key string) (Entry, bool) {
	v, ok := r.c.Get(key)
	if !ok {
		return Entry{}, false
	}
	e, ok := v.(Entry)
	if !ok {
		r.c.Del(key)
		return Entry{}, false
	}
	return e, true
}

func (r *ristrettoCache) Set(key string, entry Entry) {
	if !r.c.Set(key, entry, 1) {
		Logger.Debugf("ristretto rejected key='%s'", key)
	}
	// sets are buffered, wait so that a following Get observes the entry
	r.c.Wait()
}

func (r *ristrettoCache) Evict(key string) {
	r.c.Del(key)
}

func (r *ristrettoCache) Contains(key string) bool {
	_, ok := r.c.Get(key)
	return ok
}

func (r *ristrettoCache) Size() int {
	return r.size
}

func (r *ristrettoCache) Purge() {
	r.c.Clear()
}
