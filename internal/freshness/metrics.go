package freshness

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	touchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vendorrisk_freshness_touches_total",
		Help: "Total number of cache keys stamped as mutated",
	})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vendorrisk_freshness_persist_failures_total",
		Help: "Total number of failed writes of the freshness registry mirror",
	})

	registryKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vendorrisk_freshness_keys",
		Help: "Number of cache keys tracked by the freshness registry",
	})
)
