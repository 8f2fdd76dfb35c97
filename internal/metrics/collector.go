package metrics

import (
	"time"

	"media-vfs/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds catalog record counts.
type Stats struct {
	Mappings   int
	Contents   int
	Categories int
	Labels     int
}

// Collector periodically collects and updates catalog metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	if u, ok := c.statsProvider.(interface{ UpdateDBMetrics() }); ok {
		u.UpdateDBMetrics()
	}

	CatalogItemsTotal.WithLabelValues("mapping").Set(float64(stats.Mappings))
	CatalogItemsTotal.WithLabelValues("content").Set(float64(stats.Contents))
	CatalogItemsTotal.WithLabelValues("category").Set(float64(stats.Categories))
	CatalogItemsTotal.WithLabelValues("label").Set(float64(stats.Labels))

	logging.Debug("Metrics collected: mappings=%d, contents=%d, categories=%d, labels=%d",
		stats.Mappings, stats.Contents, stats.Categories, stats.Labels)
}
