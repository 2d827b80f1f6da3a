// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ha_timeline"

// Collector records fetch, cache, live event and refresh outcomes on its
// own registry.
type Collector struct {
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	liveEvents    *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	items         prometheus.Gauge
}

// NewCollector registers the pipeline metrics together with the Go and
// process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_fetches_total",
			Help:      "History fetches by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_fetch_duration_seconds",
			Help:      "Duration of history fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "History cache lookups by result.",
		}, []string{"result"}),
		liveEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_events_total",
			Help:      "Live state changes by merge outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Applied history refreshes by outcome.",
		}, []string{"outcome"}),
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "displayed_items",
			Help:      "Number of items currently displayed.",
		}),
	}

	c.registry.MustRegister(
		c.fetches,
		c.fetchDuration,
		c.cacheLookups,
		c.liveEvents,
		c.refreshes,
		c.items,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ObserveFetch(result string, d time.Duration) {
	c.fetches.WithLabelValues(result).Inc()
	c.fetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (c *Collector) CacheLookup(result string) {
	c.cacheLookups.WithLabelValues(result).Inc()
}

func (c *Collector) LiveEvent(outcome string) {
	c.liveEvents.WithLabelValues(outcome).Inc()
}

func (c *Collector) Refresh(outcome string) {
	c.refreshes.WithLabelValues(outcome).Inc()
}

// SetItems records the size of the displayed list.
func (c *Collector) SetItems(n int) {
	c.items.Set(float64(n))
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
