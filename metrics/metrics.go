// Package metrics provides Prometheus metrics for the widget configuration
// bridge and its controller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeNotSetUp  = "not_set_up"
	OutcomeJSONError = "json_error"
	OutcomeDropped   = "dropped"
	OutcomeError     = "error"
)

var (
	// BridgeOperations counts bridge calls by operation, channel and outcome.
	BridgeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "widget_config_bridge_operations_total",
		Help: "Total number of bridge operations, by operation, channel and outcome.",
	}, []string{"operation", "channel", "outcome"})

	// Refreshes counts controller refresh cycles by outcome.
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "widget_config_refresh_total",
		Help: "Total number of configuration refreshes, by outcome.",
	}, []string{"outcome"})

	// StoreErrors counts repository failures swallowed by the controller.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "widget_config_store_errors_total",
		Help: "Total number of repository errors, by operation and channel.",
	}, []string{"operation", "channel"})
)

// RecordOperation increments BridgeOperations.
func RecordOperation(operation, channel, outcome string) {
	BridgeOperations.WithLabelValues(operation, channel, outcome).Inc()
}

// RecordRefresh increments Refreshes with the outcome of err.
func RecordRefresh(err error) {
	if err != nil {
		Refreshes.WithLabelValues(OutcomeError).Inc()
		return
	}
	Refreshes.WithLabelValues(OutcomeOK).Inc()
}
