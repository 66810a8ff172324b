package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/particle-dynamics/internal/cache"
	"github.com/onnwee/particle-dynamics/internal/logger"
)

// StatsSource provides cache statistics.
type StatsSource interface {
	Stats() cache.Stats
}

// Collector samples checkpoint cache statistics into gauges on a fixed period.
type Collector struct {
	source   StatsSource
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a collector sampling source every interval.
func NewCollector(source StatsSource, interval time.Duration) *Collector {
	return &Collector{
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start samples once immediately, then every interval until ctx is done or
// Stop is called.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the sampling loop. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Collector) collect() {
	if c.source == nil {
		logger.Warn("Metrics collector has no stats source")
		MetricsCollectionErrors.WithLabelValues("checkpoint_cache").Inc()
		return
	}
	s := c.source.Stats()
	CheckpointCacheSize.Set(float64(s.Size))
	CheckpointCacheItems.Set(float64(s.Items))
	CheckpointCacheEvictions.Set(float64(s.Evictions))
	if lookups := s.Hits + s.Misses; lookups > 0 {
		CheckpointCacheHitRatio.Set(float64(s.Hits) / float64(lookups))
	}
}
