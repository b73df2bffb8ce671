// Package managercache implements the Manager tier's in-memory transaction
// window: a contiguous FIFO buffer whose eviction is gated by a high/low
// watermark and coupled to the uploader's durability cursor.
package managercache

import (
	"sync"
	"sync/atomic"

	"github.com/cuemby/txstream/internal/txn"
)

const (
	// MaxCacheSize is the hard ceiling on buffered bytes (§4.3).
	MaxCacheSize int64 = 10 << 30
	// TargetCacheSize is the watermark eviction drains toward.
	TargetCacheSize int64 = 8 << 30
)

// Cache is the Manager tier's dual-buffer window: T[start_version ..
// start_version+len) together with cache_size = sum of encoded lengths.
// file_store_version is an atomic counter, read by MaybeEvict and advanced
// exclusively by GetTransactions(advanceUploaderCursor=true) — this is the
// only mechanism by which the uploader declares "durably persisted up to
// here".
type Cache struct {
	mu   sync.RWMutex
	txns []txn.Transaction

	startVersion uint64
	cacheSize    int64

	fileStoreVersion atomic.Uint64

	maxSize    int64
	targetSize int64
}

// New creates an empty cache starting at startVersion with the default
// watermarks.
func New(startVersion uint64) *Cache {
	return NewWithWatermarks(startVersion, MaxCacheSize, TargetCacheSize)
}

// NewWithWatermarks allows tests to exercise eviction without 10 GiB of
// transactions.
func NewWithWatermarks(startVersion uint64, maxSize, targetSize int64) *Cache {
	c := &Cache{
		startVersion: startVersion,
		maxSize:      maxSize,
		targetSize:   targetSize,
	}
	c.fileStoreVersion.Store(startVersion)
	return c
}

// PutTransactions appends a contiguous batch. No version validation is
// performed: ingress is assumed ordered by the upstream fullnode stream.
func (c *Cache) PutTransactions(batch []txn.Transaction) {
	if len(batch) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txns = append(c.txns, batch...)
	for _, t := range batch {
		c.cacheSize += int64(t.EncodedLen())
	}
}

// GetTransactions returns transactions starting at startVersion until
// end-of-buffer or an inclusive size overshoot past maxSizeBytes (the
// tipping transaction is kept). Returns nil if startVersion is below the
// cache floor. If advanceUploaderCursor, file_store_version is atomically
// bumped by the number of transactions returned — the exclusive signal that
// those versions are now durably persisted.
func (c *Cache) GetTransactions(startVersion uint64, maxSizeBytes int64, advanceUploaderCursor bool) []txn.Transaction {
	c.mu.RLock()
	var result []txn.Transaction
	if startVersion >= c.startVersion {
		offset := startVersion - c.startVersion
		if offset < uint64(len(c.txns)) {
			var size int64
			for i := int(offset); i < len(c.txns); i++ {
				t := c.txns[i]
				result = append(result, t)
				size += int64(t.EncodedLen())
				if size >= maxSizeBytes {
					break
				}
			}
		}
	}
	c.mu.RUnlock()

	if advanceUploaderCursor && len(result) > 0 {
		c.fileStoreVersion.Add(uint64(len(result)))
	}
	return result
}

// MaybeEvict pops from the front while start_version < file_store_version
// and cache_size > target, then reports whether cache_size is now within
// the hard ceiling. A false return means the uploader is lagging and the
// caller should back off and retry.
func (c *Cache) MaybeEvict() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cacheSize <= c.maxSize {
		return true
	}

	fsv := c.fileStoreVersion.Load()
	for c.startVersion < fsv && c.cacheSize > c.targetSize && len(c.txns) > 0 {
		popped := c.txns[0]
		c.txns = c.txns[1:]
		c.cacheSize -= int64(popped.EncodedLen())
		c.startVersion++
	}

	return c.cacheSize <= c.maxSize
}

// StartVersion returns the lowest version currently held.
func (c *Cache) StartVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startVersion
}

// EndVersion returns one past the highest version currently held.
func (c *Cache) EndVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startVersion + uint64(len(c.txns))
}

// Size returns the current cache_size in bytes.
func (c *Cache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cacheSize
}

// FileStoreVersion returns the lowest version not yet durably uploaded.
func (c *Cache) FileStoreVersion() uint64 {
	return c.fileStoreVersion.Load()
}
