package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

const applicationName = "haystack"

var decryptOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name:        "haystack_report_decrypt_count",
		Help:        "decrypted report count by outcome (ok/no_key/malformed/invalid_point/unauthenticated/canceled/error)",
		ConstLabels: prometheus.Labels{"service": applicationName},
	},
	[]string{"outcome"},
)

var fetchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:        "haystack_fetch_duration",
		Help:        "report service query duration (in seconds) by status",
		ConstLabels: prometheus.Labels{"service": applicationName},
		Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"status"},
)

var storedLocations = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name:        "haystack_stored_locations_count",
		Help:        "number of decrypted locations written to the database",
		ConstLabels: prometheus.Labels{"service": applicationName},
	},
)

func init() {
	prometheus.MustRegister(
		decryptOutcomes,
		fetchDuration,
		storedLocations,
	)
}
