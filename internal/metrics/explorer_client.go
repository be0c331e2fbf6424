package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	explorerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "explorer_client",
		Name:      "operations_total",
		Help:      "Count of explorer API operations.",
	}, []string{"operation", "network", "status"})
	explorerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "explorer_client",
		Name:      "operation_duration_seconds",
		Help:      "Duration of explorer API operations.",
		Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
	}, []string{"operation", "network", "status"})
	explorerCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "explorer_client",
		Name:      "block_cache_lookups_total",
		Help:      "Count of block cache lookups by result.",
	}, []string{"network", "result"})
)

// ExplorerClient tracks metrics for explorer API calls.
type ExplorerClient struct {
	network string
}

// NewExplorerClient constructs a metrics collector for explorer calls.
func NewExplorerClient(network string) *ExplorerClient {
	if network == "" {
		network = "unknown"
	}
	return &ExplorerClient{network: network}
}

// Observe records a single API call outcome and duration.
func (m ExplorerClient) Observe(operation string, err error, started time.Time) {
	s := status(err)
	explorerRequestsTotal.WithLabelValues(operation, m.network, s).Inc()
	explorerRequestDuration.WithLabelValues(operation, m.network, s).Observe(time.Since(started).Seconds())
}

// ObserveCache records a block cache hit or miss.
func (m ExplorerClient) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	explorerCacheLookups.WithLabelValues(m.network, result).Inc()
}
