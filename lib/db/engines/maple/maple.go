package maple

import (
	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/rKV/lib/db/util"
	"runtime"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements the store map of a provider as a set of shards
type mapleImpl struct {
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Highest write index seen

	// exact accounting for GetInfo
	keys  atomic.Int64
	bytes atomic.Int64
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	shards := make([]*internal.Shard, opts.NumShards)
	for i := range shards {
		shards[i] = internal.NewShard()
	}

	return &mapleImpl{
		seed:   util.GenerateSeed(),
		shards: shards,
	}
}

func (maple *mapleImpl) shardFor(key string) *internal.Shard {
	return internal.GetShard(util.HashString(key, maple.seed), maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry with the given key, value, and writeIdx.
// Writes with a lower index than the stored entry are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, writeIdx uint64) {
	maple.SetWriteIdx(writeIdx)

	// Copy value so the caller may reuse its buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	maple.shardFor(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && writeIdx < old.Index {
			// stale write
			return old, false
		}

		if loaded {
			maple.bytes.Add(int64(len(valueCopy) - len(old.Value)))
		} else {
			maple.keys.Add(1)
			maple.bytes.Add(int64(len(valueCopy)))
		}

		return internal.Entry{Value: valueCopy, Index: writeIdx}, false
	})
}

// Delete removes an entry with the specified key.
// Deleting an absent key is a no-op.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, writeIdx uint64) {
	maple.SetWriteIdx(writeIdx)

	maple.shardFor(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return old, true
		}
		if writeIdx < old.Index {
			return old, false
		}
		maple.keys.Add(-1)
		maple.bytes.Add(-int64(len(old.Value)))
		return old, true
	})
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Query Operations
// --------------------------------------------------------------------------

// Get retrieves a copy of the value for a key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool) {
	entry, ok := maple.shardFor(key).Data.Load(key)
	if !ok {
		return nil, false
	}

	// entries are never modified in place, copying outside the map is safe
	valueCopy := make([]byte, len(entry.Value))
	copy(valueCopy, entry.Value)
	return valueCopy, true
}

// SizeOf returns the length of the value stored for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SizeOf(key string) (int, bool) {
	entry, ok := maple.shardFor(key).Data.Load(key)
	if !ok {
		return 0, false
	}
	return len(entry.Value), true
}

// Has checks whether a key exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	_, ok := maple.shardFor(key).Data.Load(key)
	return ok
}

// --------------------------------------------------------------------------
// Info and Feature Support
// --------------------------------------------------------------------------

// GetInfo returns the number of keys, the total value size and the shard distribution
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	shardSizes := make([]float64, len(maple.shards))
	for i, shard := range maple.shards {
		shardSizes[i] = float64(shard.Data.Size())
	}

	meta := &struct {
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
	}{
		CurrentWriteIndex: maple.currIndex.Load(),
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
	}

	return db.DatabaseInfo{
		Keys:      int(maple.keys.Load()),
		SizeBytes: int(maple.bytes.Load()),
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureSizeOf,
			db.FeatureDelete, db.FeatureHas,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if the database supports the specified feature(s)
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureSet | db.FeatureGet | db.FeatureSizeOf | db.FeatureDelete | db.FeatureHas
	return feature&supported == feature
}

// Close drops all entries
func (maple *mapleImpl) Close() error {
	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
	maple.keys.Store(0)
	maple.bytes.Store(0)
	return nil
}

// --------------------------------------------------------------------------
// Write Index Operations
// --------------------------------------------------------------------------

// SetWriteIdx updates the current index if the new index is greater
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
