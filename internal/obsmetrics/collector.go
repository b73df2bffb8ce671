package obsmetrics

import (
	"time"

	"github.com/cuemby/txstream/internal/fabric"
	"github.com/cuemby/txstream/internal/livecache"
	"github.com/cuemby/txstream/internal/managercache"
)

// Collector polls the long-lived pieces of a Manager or Live Data process
// on a fixed interval and republishes their state as gauges, the way
// point-in-time state (cache size, peer count) needs a poll rather than an
// event to observe.
type Collector struct {
	cache  *managercache.Cache
	live   *livecache.Cache
	fab    *fabric.Fabric
	stopCh chan struct{}
	period time.Duration
}

// NewCollector builds a Collector. Any of cache, live, fab may be nil for a
// process that doesn't run that component.
func NewCollector(cache *managercache.Cache, live *livecache.Cache, fab *fabric.Fabric) *Collector {
	return &Collector{cache: cache, live: live, fab: fab, stopCh: make(chan struct{}), period: 15 * time.Second}
}

// Start begins the polling loop in a new goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.period)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the polling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.cache != nil {
		CacheSizeBytes.Set(float64(c.cache.Size()))
		CacheStartVersion.Set(float64(c.cache.StartVersion()))
		CacheEndVersion.Set(float64(c.cache.EndVersion()))
	}
	if c.live != nil {
		LiveCacheSizeBytes.Set(float64(c.live.Size()))
	}
	if c.fab != nil {
		KnownLatestVersion.Set(float64(c.fab.KnownLatestVersion()))
		ActiveStreamsTotal.Set(float64(len(c.fab.ActiveStreams())))
	}
}

// RetryObserver implements filestore.RetryObserver.
type RetryObserver struct{}

func (RetryObserver) ObserveRetry(storeTag string) {
	BlobStoreRetriesTotal.WithLabelValues(storeTag).Inc()
}

// FlushObserver implements uploader.FlushObserver.
type FlushObserver struct{}

func (FlushObserver) ObserveFlush(d time.Duration) {
	UploaderFlushDuration.Observe(d.Seconds())
}
