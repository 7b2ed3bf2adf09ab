package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChainHeadBlock tracks the latest chain head seen by the watcher
	ChainHeadBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ethwatch_chain_head_block",
			Help: "Latest Ethereum block number reported by the gateway",
		},
	)

	// LastProcessedBlock tracks the block the confirmation state was built for
	LastProcessedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ethwatch_last_processed_block",
			Help: "Last Ethereum block folded into the watcher state",
		},
	)

	// PriorityQueueSize tracks accepted, not yet expired priority operations
	PriorityQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ethwatch_priority_queue_size",
			Help: "Number of accepted priority operations",
		},
	)

	// UnconfirmedPriorityOps tracks priority operations still within reorg depth
	UnconfirmedPriorityOps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ethwatch_unconfirmed_priority_ops",
			Help: "Number of priority operations seen in unconfirmed blocks",
		},
	)

	// PollDuration tracks how long a poll of the Ethereum node takes
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ethwatch_poll_duration_seconds",
			Help:    "Duration of a poll of the Ethereum node",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PollErrorsTotal tracks abandoned polls by kind (rate_limit, other)
	PollErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethwatch_poll_errors_total",
			Help: "Total number of abandoned polls",
		},
		[]string{"kind"},
	)

	// BackoffEnteredTotal tracks how often the watcher entered backoff mode
	BackoffEnteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethwatch_backoff_entered_total",
			Help: "Total number of times the watcher entered backoff mode",
		},
	)

	// ProviderCallsTotal tracks calls delegated to each provider
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethwatch_provider_calls_total",
			Help: "Total number of calls delegated to a provider",
		},
		[]string{"provider", "method"},
	)

	// ProviderErrorsTotal tracks failed calls per provider
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethwatch_provider_errors_total",
			Help: "Total number of failed calls per provider",
		},
		[]string{"provider", "method"},
	)
)
