// internal/metrics/collector.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts routing and pinning decisions on its own registry.
// It satisfies router.Observer and middleware.Observer.
type Collector struct {
	routes   *prometheus.CounterVec
	pins     *prometheus.CounterVec
	cookies  prometheus.Counter
	replicas prometheus.Gauge
	registry *prometheus.Registry
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	c := &Collector{
		routes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multidb_route_total",
				Help: "Total number of routed database operations",
			},
			[]string{"op", "alias"},
		),
		pins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multidb_pins_total",
				Help: "Total number of units of work pinned to the primary",
			},
			[]string{"reason"},
		),
		cookies: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "multidb_pin_cookies_total",
				Help: "Total number of sticky pin cookies set",
			},
		),
		replicas: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "multidb_replicas_configured",
				Help: "Number of configured replica databases",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	c.registry.MustRegister(c.routes)
	c.registry.MustRegister(c.pins)
	c.registry.MustRegister(c.cookies)
	c.registry.MustRegister(c.replicas)

	return c
}

// ObserveRoute counts one routed operation.
func (c *Collector) ObserveRoute(op, alias string) {
	c.routes.WithLabelValues(op, alias).Inc()
}

// ObservePin counts one pinned unit of work.
func (c *Collector) ObservePin(reason string) {
	c.pins.WithLabelValues(reason).Inc()
}

// ObservePinCookie counts one sticky cookie.
func (c *Collector) ObservePinCookie() {
	c.cookies.Inc()
}

// SetReplicas records the number of configured replicas.
func (c *Collector) SetReplicas(n int) {
	c.replicas.Set(float64(n))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
