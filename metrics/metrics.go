// Package metrics exposes circulation counters to Prometheus.
package metrics

import (
	"net/http"

	"school_library/circulation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements circulation.Metrics on its own registry.
type Collector struct {
	reg       *prometheus.Registry
	checkouts *prometheus.CounterVec
	conflicts *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "checkouts_total",
			Help:      "Checkout attempts by borrower category and outcome.",
		}, []string{"category", "outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "copy_integrity_conflicts_total",
			Help:      "Availability reads that found several open loans on one copy.",
		}, []string{"title_id"}),
	}
	c.reg.MustRegister(c.checkouts, c.conflicts, collectors.NewGoCollector())
	return c
}

func (c *Collector) CheckoutOutcome(cat circulation.Category, outcome string) {
	c.checkouts.WithLabelValues(string(cat), outcome).Inc()
}

func (c *Collector) IntegrityConflict(titleID string) {
	c.conflicts.WithLabelValues(titleID).Inc()
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
