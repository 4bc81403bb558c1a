package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	subscriptionOnce sync.Once
	subscriptionReg  *SubscriptionMetricsSet
)

// ModuleMetrics returns the lazily-initialised registry recording JSON-RPC
// method activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdfi",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdfi",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cdfi",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdfi",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter or auth.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an RPC call. status is the JSON-RPC error
// code, or zero on success.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	module, method = normalizeLabel(module), normalizeLabel(method)
	outcome := "success"
	if status != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, strconv.Itoa(status)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle counts a rejected request. Reasons should be stable strings
// such as "rate_limit" or "unauthorized".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(normalizeLabel(module), normalizeLabel(reason)).Inc()
}

// SubscriptionMetricsSet tracks transaction execution and the money flows of
// the subscription and vesting modules.
type SubscriptionMetricsSet struct {
	txs            *prometheus.CounterVec
	txLatency      *prometheus.HistogramVec
	purchases      *prometheus.CounterVec
	refundFailures prometheus.Counter
	withdrawals    *prometheus.CounterVec
	vestingClaims  *prometheus.CounterVec
	events         *prometheus.CounterVec
	height         prometheus.Gauge
}

// SubscriptionMetrics returns the singleton execution metrics registry.
func SubscriptionMetrics() *SubscriptionMetricsSet {
	subscriptionOnce.Do(func() {
		subscriptionReg = &SubscriptionMetricsSet{
			txs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdfi",
				Subsystem: "executor",
				Name:      "transactions_total",
				Help:      "Executed transactions segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			txLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cdfi",
				Subsystem: "executor",
				Name:      "transaction_duration_seconds",
				Help:      "Latency distribution for transaction execution including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdfi",
				Subsystem: "subscription",
				Name:      "purchases_total",
				Help:      "Subscription purchases segmented by payment rail and outcome.",
			}, []string{"asset", "outcome"}),
			refundFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "cdfi",
				Subsystem: "subscription",
				Name:      "refund_failures_total",
				Help:      "Native purchases whose excess value could not be returned.",
			}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdfi",
				Subsystem: "subscription",
				Name:      "withdrawals_total",
				Help:      "Treasury sweeps segmented by asset.",
			}, []string{"asset"}),
			vestingClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdfi",
				Subsystem: "vesting",
				Name:      "claims_total",
				Help:      "Vesting withdrawals segmented by schedule.",
			}, []string{"schedule"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cdfi",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Events carried by committed receipts, segmented by type.",
			}, []string{"type"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "cdfi",
				Subsystem: "executor",
				Name:      "height",
				Help:      "Number of committed transactions.",
			}),
		}
		prometheus.MustRegister(
			subscriptionReg.txs,
			subscriptionReg.txLatency,
			subscriptionReg.purchases,
			subscriptionReg.refundFailures,
			subscriptionReg.withdrawals,
			subscriptionReg.vestingClaims,
			subscriptionReg.events,
			subscriptionReg.height,
		)
	})
	return subscriptionReg
}

// ObserveTx records one executed transaction. reverted reports a committed
// failure receipt.
func (m *SubscriptionMetricsSet) ObserveTx(method string, reverted bool, duration time.Duration) {
	if m == nil {
		return
	}
	method = normalizeLabel(method)
	outcome := "success"
	if reverted {
		outcome = "reverted"
	}
	m.txs.WithLabelValues(method, outcome).Inc()
	m.txLatency.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *SubscriptionMetricsSet) RecordPurchase(asset string, reverted bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if reverted {
		outcome = "reverted"
	}
	m.purchases.WithLabelValues(normalizeLabel(asset), outcome).Inc()
}

func (m *SubscriptionMetricsSet) RecordRefundFailure() {
	if m == nil {
		return
	}
	m.refundFailures.Inc()
}

func (m *SubscriptionMetricsSet) RecordWithdrawal(asset string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(normalizeLabel(asset)).Inc()
}

func (m *SubscriptionMetricsSet) RecordVestingClaim(schedule string) {
	if m == nil {
		return
	}
	m.vestingClaims.WithLabelValues(normalizeLabel(schedule)).Inc()
}

// RecordEvent counts one event of a committed receipt.
func (m *SubscriptionMetricsSet) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *SubscriptionMetricsSet) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
