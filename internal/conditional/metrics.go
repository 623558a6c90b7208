package conditional

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded per cached read.
const (
	outcomeNotModified = "not_modified"
	outcomeLocalHit    = "local_hit"
	outcomeMiss        = "miss"
	outcomeBypass      = "bypass"
	outcomeUncacheable = "uncacheable"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vendorrisk_conditional_requests_total",
		Help: "Cached read requests by outcome",
	},
	[]string{"outcome"},
)

var etagNotModified = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vendorrisk_etag_not_modified_total",
	Help: "Responses answered 304 because If-None-Match matched the body hash",
})
