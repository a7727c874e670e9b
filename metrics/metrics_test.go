package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSerialAllocationsTotal_Increment(t *testing.T) {
	before := testutil.ToFloat64(SerialAllocationsTotal.WithLabelValues("test-svc", "daily", "rule"))
	SerialAllocationsTotal.WithLabelValues("test-svc", "daily", "rule").Inc()
	after := testutil.ToFloat64(SerialAllocationsTotal.WithLabelValues("test-svc", "daily", "rule"))

	assert.Equal(t, before+1, after)
}

func TestActiveBatchJobs_SetValue(t *testing.T) {
	ActiveBatchJobs.WithLabelValues("test-svc-2").Set(5)
	value := testutil.ToFloat64(ActiveBatchJobs.WithLabelValues("test-svc-2"))

	assert.Equal(t, float64(5), value)
}

func TestHistograms_Observe(t *testing.T) {
	StoreLatency.WithLabelValues("test-svc-3", "next").Observe(0.002)
	BatchDuration.WithLabelValues("test-svc-3", "async").Observe(1.5)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(StoreLatency), 1)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(BatchDuration), 1)
}

func TestMetricNames_UseCodegenPrefix(t *testing.T) {
	collectors := map[string]prometheus.Collector{
		"codegen_serial_allocations_total":  SerialAllocationsTotal,
		"codegen_serial_range_values_total": SerialRangeValuesTotal,
		"codegen_serial_resets_total":       SerialResetsTotal,
		"codegen_store_errors_total":        StoreErrorsTotal,
		"codegen_store_retries_total":       StoreRetriesTotal,
		"codegen_codes_composed_total":      CodesComposedTotal,
		"codegen_composition_errors_total":  CompositionErrorsTotal,
		"codegen_batch_jobs_total":          BatchJobsTotal,
		"codegen_batch_items_total":         BatchItemsTotal,
		"codegen_active_batch_jobs":         ActiveBatchJobs,
	}

	for name, c := range collectors {
		desc := make(chan *prometheus.Desc, 1)
		c.Describe(desc)
		assert.Contains(t, (<-desc).String(), `fqName: "`+name+`"`)
	}
}
