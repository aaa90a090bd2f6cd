// Package metrics exposes Prometheus metrics for outgoing WordPress calls and
// processed items.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ItemsProcessed  *prometheus.CounterVec
}

// NewCollector creates a Collector with every metric registered under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wordpress_requests_total",
			Help:      "Total number of requests sent to WordPress REST APIs",
		}, []string{"method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wordpress_request_duration_seconds",
			Help:      "Duration of requests sent to WordPress REST APIs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Total number of input items processed by the node",
		}, []string{"resource", "operation", "result"}),
	}
	reg.MustRegister(c.RequestsTotal, c.RequestDuration, c.ItemsProcessed)
	return c
}

// ObserveRequest records one HTTP call. Status 0 is reported as "error".
func (c *Collector) ObserveRequest(method string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.RequestsTotal.WithLabelValues(method, label).Inc()
	c.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveItem records one processed item.
func (c *Collector) ObserveItem(resource, operation, result string) {
	c.ItemsProcessed.WithLabelValues(resource, operation, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
