// Package livecache implements the Live Data tier's ring buffer: a fixed
// number of version-addressed slots, soft-limited by total byte size, with
// concurrent head reads for the same start version coalesced into one
// in-flight upstream fetch. Head reads at different start versions each
// run their own fetch.
package livecache

import (
	"context"
	"strconv"
	"sync"

	"github.com/cuemby/txstream/internal/txn"
	"golang.org/x/sync/singleflight"
)

// DefaultSlots is the ring's capacity in versions.
const DefaultSlots = 1 << 20

// DefaultByteLimit is the soft cap on total buffered bytes before eviction
// starts trimming the tail.
const DefaultByteLimit = 512 << 20

// DefaultEvictionTarget is what eviction drains toward once DefaultByteLimit
// is crossed.
const DefaultEvictionTarget = 400 << 20

// FetchFunc retrieves the next chunk of transactions starting at
// fromVersion from whatever upstream feeds this cache (typically the
// Manager tier's RpcFront). It is the external collaborator for cache-miss
// reads at the head of the stream.
type FetchFunc func(ctx context.Context, fromVersion uint64) ([]txn.Transaction, error)

type slot struct {
	valid bool
	txn   txn.Transaction
}

// Cache is the Live Data tier's ring buffer.
type Cache struct {
	mu   sync.RWMutex
	ring []slot

	startVersion uint64
	endVersion   uint64
	size         int64

	byteLimit      int64
	evictionTarget int64

	fetch FetchFunc
	sf    singleflight.Group
}

// New builds an empty Cache with the default capacity and byte limits.
func New(startVersion uint64, fetch FetchFunc) *Cache {
	return NewWithLimits(startVersion, DefaultSlots, DefaultByteLimit, DefaultEvictionTarget, fetch)
}

// NewWithLimits allows tests to exercise eviction and wraparound without
// the production-sized ring.
func NewWithLimits(startVersion uint64, slots int, byteLimit, evictionTarget int64, fetch FetchFunc) *Cache {
	return &Cache{
		ring:           make([]slot, slots),
		startVersion:   startVersion,
		endVersion:     startVersion,
		byteLimit:      byteLimit,
		evictionTarget: evictionTarget,
		fetch:          fetch,
	}
}

// UpdateData inserts a contiguous batch of transactions, overwriting
// whatever stale slots their version numbers land on (mod the ring size),
// then evicts from the tail if the soft byte limit is crossed.
func (c *Cache) UpdateData(batch []txn.Transaction) {
	if len(batch) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range batch {
		idx := int(t.Version() % uint64(len(c.ring)))
		if c.ring[idx].valid {
			c.size -= int64(c.ring[idx].txn.EncodedLen())
		}
		c.ring[idx] = slot{valid: true, txn: t}
		c.size += int64(t.EncodedLen())
		if t.Version() >= c.endVersion {
			c.endVersion = t.Version() + 1
		}
	}
	// Slide the window so it never spans more versions than the ring holds.
	if n := uint64(len(c.ring)); c.endVersion > n && c.startVersion < c.endVersion-n {
		c.startVersion = c.endVersion - n
	}

	c.evictLocked()
}

// evictLocked advances startVersion, invalidating the slots it passes over,
// until size is back under evictionTarget. Caller must hold c.mu.
func (c *Cache) evictLocked() {
	if c.size <= c.byteLimit {
		return
	}
	for c.size > c.evictionTarget && c.startVersion < c.endVersion {
		idx := int(c.startVersion % uint64(len(c.ring)))
		if c.ring[idx].valid {
			c.size -= int64(c.ring[idx].txn.EncodedLen())
			c.ring[idx] = slot{}
		}
		c.startVersion++
	}
}

// GetData returns the transaction at v if it is currently held in the ring.
func (c *Cache) GetData(v uint64) (txn.Transaction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v < c.startVersion || v >= c.endVersion {
		return txn.Transaction{}, false
	}
	s := c.ring[v%uint64(len(c.ring))]
	if !s.valid || s.txn.Version() != v {
		return txn.Transaction{}, false
	}
	return s.txn, true
}

// StartVersion returns the lowest version still held in the ring.
func (c *Cache) StartVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startVersion
}

// EndVersion returns one past the highest version ever inserted.
func (c *Cache) EndVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endVersion
}

// Size returns the current total buffered byte size.
func (c *Cache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// FetchHead is called when a reader wants data at or beyond EndVersion.
// Concurrent callers requesting the same fromVersion share one upstream
// fetch; UpdateData is applied exactly once with the shared result before
// every waiter returns.
func (c *Cache) FetchHead(ctx context.Context, fromVersion uint64) ([]txn.Transaction, error) {
	key := strconv.FormatUint(fromVersion, 10)
	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		chunk, err := c.fetch(ctx, fromVersion)
		if err != nil {
			return nil, err
		}
		c.UpdateData(chunk)
		return chunk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]txn.Transaction), nil
}
