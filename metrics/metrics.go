package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SerialAllocationsTotal tracks single serial values handed out.
var SerialAllocationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codegen_serial_allocations_total",
		Help: "Total serial values allocated one at a time",
	},
	[]string{"service", "policy", "scope"},
)

// SerialRangeValuesTotal tracks values handed out through range reservations.
var SerialRangeValuesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codegen_serial_range_values_total",
		Help: "Total serial values reserved through ranges",
	},
	[]string{"service", "policy"},
)

// SerialResetsTotal tracks counters deleted by reset operations.
var SerialResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codegen_serial_resets_total",
		Help: "Total counters removed by reset operations",
	},
	[]string{"service"},
)

// StoreErrorsTotal tracks failed sequence store attempts, including retried ones.
var StoreErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codegen_store_errors_total",
		Help: "Total failed sequence store attempts",
	},
	[]string{"service", "operation"},
)

// StoreRetriesTotal tracks retries of sequence store calls.
var StoreRetriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codegen_store_retries_total",
		Help: "Total sequence store call retries",
	},
	[]string{"service", "operation"},
)

// StoreLatency tracks the latency of sequence store calls.
var StoreLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "codegen_store_latency_seconds",
		Help:    "Sequence store call latency",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"service", "operation"},
)

// CodesComposedTotal tracks codes composed successfully.
var CodesComposedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codegen_codes_composed_total",
		Help: "Total codes composed",
	},
	[]string{"service", "mode"},
)

// CompositionErrorsTotal tracks codes abandoned because a segment failed.
var CompositionErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codegen_composition_errors_total",
		Help: "Total composition failures by segment type",
	},
	[]string{"service", "segment"},
)

// BatchJobsTotal tracks batch jobs by final status.
var BatchJobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codegen_batch_jobs_total",
		Help: "Total batch jobs by final status",
	},
	[]string{"service", "status"},
)

// BatchItemsTotal tracks batch items by result.
var BatchItemsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codegen_batch_items_total",
		Help: "Total batch items by result",
	},
	[]string{"service", "result"},
)

// ActiveBatchJobs tracks batch jobs currently processing.
var ActiveBatchJobs = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "codegen_active_batch_jobs",
		Help: "Batch jobs currently processing",
	},
	[]string{"service"},
)

// BatchDuration tracks how long batches take from start to terminal state.
var BatchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "codegen_batch_duration_seconds",
		Help:    "Batch processing duration",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	},
	[]string{"service", "mode"},
)
