// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	FundsRefunded     *prometheus.CounterVec

	// Sale metrics
	TotalRaised       prometheus.Gauge
	SaleStatus        *prometheus.GaugeVec
	SettlementsTotal  *prometheus.CounterVec
	LifecycleAdvances *prometheus.CounterVec

	// Event feed metrics
	EventsStored    prometheus.Counter
	EventStoreFails prometheus.Counter
	WSClients       prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulOperation prometheus.Gauge
}

// saleStatuses are the label values of SaleStatus.
var saleStatuses = []string{"PENDING", "ACTIVE", "SUCCEEDED", "FAILED"}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "presale_ledger"
	}

	return &Metrics{
		// Operation metrics
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "operations_total",
			Help:      "Total number of executed operations by action and outcome",
		}, []string{"action", "outcome"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "operation_duration_seconds",
			Help:      "Operation execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		FundsRefunded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "attached_funds_returned_total",
			Help:      "Total number of calls whose attached funds were returned after a failure",
		}, []string{"action"}),

		// Sale metrics
		TotalRaised: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "total_raised",
			Help:      "Total raised in accounting units",
		}),
		SaleStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "status",
			Help:      "1 for the current sale status, 0 otherwise",
		}, []string{"status"}),
		SettlementsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "settlements_total",
			Help:      "Total number of dispatched settlement transfers by kind",
		}, []string{"kind"}),
		LifecycleAdvances: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sale",
			Name:      "lifecycle_advances_total",
			Help:      "Total number of persisted lifecycle transitions by target status",
		}, []string{"status"}),

		// Event feed metrics
		EventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "stored_total",
			Help:      "Total number of sale events stored",
		}),
		EventStoreFails: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "store_errors_total",
			Help:      "Total number of sale events that could not be stored",
		}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "ws_clients",
			Help:      "Current number of connected websocket clients",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulOperation: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_operation_timestamp",
			Help:      "Unix timestamp of last committed operation",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOperation records the outcome and latency of one operation.
func RecordOperation(action, outcome string, seconds float64) {
	DefaultMetrics.OperationsTotal.WithLabelValues(action, outcome).Inc()
	DefaultMetrics.OperationDuration.WithLabelValues(action).Observe(seconds)
}

// RecordFundsReturned records a failed call whose attached funds went back.
func RecordFundsReturned(action string) {
	DefaultMetrics.FundsRefunded.WithLabelValues(action).Inc()
}

// UpdateSale updates the sale gauges.
func UpdateSale(totalRaised float64, status string) {
	DefaultMetrics.TotalRaised.Set(totalRaised)
	for _, s := range saleStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		DefaultMetrics.SaleStatus.WithLabelValues(s).Set(v)
	}
}

// RecordSettlement records a dispatched transfer.
func RecordSettlement(kind string) {
	DefaultMetrics.SettlementsTotal.WithLabelValues(kind).Inc()
}

// RecordLifecycleAdvance records a persisted status transition.
func RecordLifecycleAdvance(status string) {
	DefaultMetrics.LifecycleAdvances.WithLabelValues(status).Inc()
}

// RecordEventStored records the result of storing a sale event.
func RecordEventStored(err error) {
	if err != nil {
		DefaultMetrics.EventStoreFails.Inc()
		return
	}
	DefaultMetrics.EventsStored.Inc()
}

// SetWSClients updates the websocket client gauge.
func SetWSClients(n int) {
	DefaultMetrics.WSClients.Set(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// MarkSuccess records the time of the last committed operation.
func MarkSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulOperation.Set(float64(unixSeconds))
}
