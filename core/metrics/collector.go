package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the engine.
type Collector struct {
	registry *prometheus.Registry

	Syncs       *prometheus.CounterVec
	PageFetches *prometheus.CounterVec
	Writes      *prometheus.CounterVec
	TagDeletes  prometheus.Counter
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a collector with the given namespace on a fresh registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syncs_total",
			Help:      "Library syncs by outcome",
		}, []string{"status"}),
		PageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_fetches_total",
			Help:      "Page requests issued to the remote library service",
		}, []string{"endpoint"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "written_items_total",
			Help:      "Written items by outcome",
		}, []string{"outcome"}),
		TagDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_deletes_total",
			Help:      "Tags deleted from remote libraries",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Dependent cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Dependent cache misses",
		}),
	}

	registry.MustRegister(c.Syncs, c.PageFetches, c.Writes, c.TagDeletes, c.CacheHits, c.CacheMisses)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveSync records one sync outcome.
func (c *Collector) ObserveSync(success bool) {
	if c == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	c.Syncs.WithLabelValues(status).Inc()
}

// ObservePageFetch records one page request. Endpoint should be the resource kind, not the full path.
func (c *Collector) ObservePageFetch(endpoint string) {
	if c == nil {
		return
	}
	c.PageFetches.WithLabelValues(resource(endpoint)).Inc()
}

// ObserveWrites records item outcomes of one batch write.
func (c *Collector) ObserveWrites(success, unchanged, failed, rejectedChunks int) {
	if c == nil {
		return
	}
	c.Writes.WithLabelValues("success").Add(float64(success))
	c.Writes.WithLabelValues("unchanged").Add(float64(unchanged))
	c.Writes.WithLabelValues("failed").Add(float64(failed))
	c.Writes.WithLabelValues("rejected_chunk").Add(float64(rejectedChunks))
}

// ObserveTagDeletes records deleted tags.
func (c *Collector) ObserveTagDeletes(n int) {
	if c == nil {
		return
	}
	c.TagDeletes.Add(float64(n))
}

// ObserveCache records a cache lookup.
func (c *Collector) ObserveCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}

// resource keeps the label cardinality bounded: "users/1/items" -> "items".
func resource(endpoint string) string {
	for i := len(endpoint) - 1; i >= 0; i-- {
		if endpoint[i] == '/' {
			return endpoint[i+1:]
		}
	}
	return endpoint
}
