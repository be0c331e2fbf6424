// Package metrics exposes application metrics collectors.
package metrics

import (
	"errors"
	"time"

	"github.com/goodnatureofminers/blockpie/internal/chain"
	"github.com/goodnatureofminers/blockpie/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "blockpie"

var (
	pollerFetchTipTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "fetch_tip_total",
		Help:      "Count of attempts to fetch the chain tip.",
	}, []string{"network", "status"})

	pollerFetchTipDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "fetch_tip_duration_seconds",
		Help:      "Duration of fetching the chain tip.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	pollerProcessBatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "process_batch_total",
		Help:      "Count of processed height batches.",
	}, []string{"network", "status"})

	pollerProcessBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "process_batch_duration_seconds",
		Help:      "Duration of processing a batch of heights.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	pollerProcessBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "process_batch_size",
		Help:      "Number of heights planned per batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 11), // 1..1024
	}, []string{"network"})

	pollerProcessHeightDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "process_height_duration_seconds",
		Help:      "Duration of fetching and attributing a single height.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	pollerPersistTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "persist_total",
		Help:      "Count of ledger persist attempts.",
	}, []string{"network", "status"})

	pollerPersistDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "persist_duration_seconds",
		Help:      "Duration of ledger persist attempts.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	pollerAttributionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "attributions_total",
		Help:      "Count of attributed blocks by winning algorithm.",
	}, []string{"network", "algorithm"})

	pollerStateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "state_transitions_total",
		Help:      "Count of polling loop state entries.",
	}, []string{"network", "state"})

	pollerTipHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "tip_height",
		Help:      "Last observed chain tip height.",
	}, []string{"network"})

	pollerLastProcessedHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "last_processed_height",
		Help:      "Highest height merged into the aggregate.",
	}, []string{"network"})

	pollerNetworkDifficulty = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "network_difficulty",
		Help:      "Network difficulty reported by the explorer per algorithm.",
	}, []string{"network", "algorithm"})
)

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, chain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Poller tracks metrics for the polling loop.
type Poller struct {
	network string
}

// NewPoller constructs a Poller collector for a network.
func NewPoller(network string) *Poller {
	if network == "" {
		network = "unknown"
	}
	return &Poller{network: network}
}

// ObserveFetchTip records a tip fetch outcome and duration.
func (m Poller) ObserveFetchTip(err error, started time.Time) {
	s := status(err)
	pollerFetchTipTotal.WithLabelValues(m.network, s).Inc()
	pollerFetchTipDuration.WithLabelValues(m.network, s).Observe(time.Since(started).Seconds())
}

// ObserveProcessBatch records processing of a planned batch.
func (m Poller) ObserveProcessBatch(err error, heights int, started time.Time) {
	s := status(err)
	pollerProcessBatchTotal.WithLabelValues(m.network, s).Inc()
	pollerProcessBatchDuration.WithLabelValues(m.network, s).Observe(time.Since(started).Seconds())
	pollerProcessBatchSize.WithLabelValues(m.network).Observe(float64(heights))
}

// ObserveProcessHeight records processing of a single height.
func (m Poller) ObserveProcessHeight(err error, _ uint64, started time.Time) {
	pollerProcessHeightDuration.WithLabelValues(m.network, status(err)).Observe(time.Since(started).Seconds())
}

// ObservePersist records a ledger persist attempt.
func (m Poller) ObservePersist(err error, started time.Time) {
	s := status(err)
	pollerPersistTotal.WithLabelValues(m.network, s).Inc()
	pollerPersistDuration.WithLabelValues(m.network, s).Observe(time.Since(started).Seconds())
}

// ObserveAttribution counts an attributed block.
func (m Poller) ObserveAttribution(algorithm model.Algorithm) {
	pollerAttributionsTotal.WithLabelValues(m.network, string(algorithm)).Inc()
}

// ObserveState counts entries into a loop state.
func (m Poller) ObserveState(state string) {
	pollerStateTransitionsTotal.WithLabelValues(m.network, state).Inc()
}

// SetTip records the observed chain tip and its difficulty figures.
func (m Poller) SetTip(tip model.ChainTip) {
	pollerTipHeight.WithLabelValues(m.network).Set(float64(tip.Height))
	for algo, difficulty := range tip.Difficulty {
		pollerNetworkDifficulty.WithLabelValues(m.network, string(algo)).Set(difficulty)
	}
}

// SetLastProcessed records the highest merged height.
func (m Poller) SetLastProcessed(height uint64) {
	pollerLastProcessedHeight.WithLabelValues(m.network).Set(float64(height))
}
