package metrics

import "time"

// ReplayCache is the subset of pkg/bcast.Cache's interface the collector
// needs. Declared here rather than importing pkg/bcast directly so that
// package can import pkg/metrics to increment its own counters without an
// import cycle.
type ReplayCache interface {
	Len() int
}

// Collector periodically samples gauges that cannot be updated inline at
// the point of mutation, the way the teacher's Collector polls the
// manager on a ticker.
type Collector struct {
	cache  ReplayCache
	stopCh chan struct{}
}

// NewCollector creates a Collector that samples cache's size.
func NewCollector(cache ReplayCache) *Collector {
	return &Collector{
		cache:  cache,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
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

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.cache == nil {
		return
	}
	BcastCacheSize.Set(float64(c.cache.Len()))
}
