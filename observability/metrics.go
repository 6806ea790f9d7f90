package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetricsRegistry tracks JSON-RPC activity and settlement volume
// for the marketplace module.
type MarketplaceMetricsRegistry struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	purchases  prometheus.Counter
	settlement prometheus.Counter
}

var (
	marketplaceMetricsOnce sync.Once
	marketplaceRegistry    *MarketplaceMetricsRegistry
)

// MarketplaceMetrics returns the lazily-initialised marketplace metrics
// registry. Collectors register against the default Prometheus registry on
// first use.
func MarketplaceMetrics() *MarketplaceMetricsRegistry {
	marketplaceMetricsOnce.Do(func() {
		marketplaceRegistry = &MarketplaceMetricsRegistry{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "atelier",
				Subsystem: "marketplace",
				Name:      "requests_total",
				Help:      "Total JSON-RPC marketplace requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "atelier",
				Subsystem: "marketplace",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC marketplace handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			purchases: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atelier",
				Subsystem: "marketplace",
				Name:      "purchases_total",
				Help:      "Count of settled purchases.",
			}),
			settlement: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "atelier",
				Subsystem: "marketplace",
				Name:      "settlement_value_total",
				Help:      "Cumulative gross value moved by settled purchases, in base units.",
			}),
		}
		prometheus.MustRegister(
			marketplaceRegistry.requests,
			marketplaceRegistry.latency,
			marketplaceRegistry.purchases,
			marketplaceRegistry.settlement,
		)
	})
	return marketplaceRegistry
}

// ObserveRequest records one handled RPC request.
func (m *MarketplaceMetricsRegistry) ObserveRequest(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(seconds)
}

// ObservePurchase records a settled purchase and its gross value. Precision
// loss in the float conversion is acceptable for monitoring purposes.
func (m *MarketplaceMetricsRegistry) ObservePurchase(totalPrice *big.Int) {
	if m == nil {
		return
	}
	m.purchases.Inc()
	if totalPrice != nil && totalPrice.Sign() > 0 {
		value, _ := new(big.Float).SetInt(totalPrice).Float64()
		m.settlement.Add(value)
	}
}
