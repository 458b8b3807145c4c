package gogoblin

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appResponseCounts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goblin_http_responses_total",
			Help: "HTTP responses served by the API, by status code.",
		},
		[]string{"code"},
	)

	externalResponseCounts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goblin_external_http_responses_total",
			Help: "Upstream HTTP responses received, by host and status code.",
		},
		[]string{"host", "code"},
	)

	providerFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "goblin_provider_fallbacks_total",
			Help: "Times the indexing provider failed and the ledger RPC path was used instead.",
		},
	)

	addressOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goblin_address_metrics_total",
			Help: "Per-address metric computations, by data source and outcome.",
		},
		[]string{"source", "outcome"},
	)
)

func incrementResponseCount(counter *prometheus.CounterVec, code int, labels ...string) {
	if counter == nil {
		return
	}
	values := append(labels, strconv.Itoa(code))
	counter.WithLabelValues(values...).Inc()
}

func recordAddressOutcome(m AddressMetrics) {
	source := m.Source
	if source == "" {
		source = "none"
	}
	outcome := "succeeded"
	if m.Error != "" {
		outcome = "failed"
	}
	addressOutcomes.WithLabelValues(source, outcome).Inc()
}
