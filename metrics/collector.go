package metrics

// Collector wraps metrics and provides helper methods with pre-filled labels.
// A nil *Collector discards every observation.
type Collector struct {
	service string
}

// NewCollector creates a new Collector for the given service name.
func NewCollector(service string) *Collector {
	return &Collector{service: service}
}

// IncSerialAllocations increments the single allocation counter.
func (c *Collector) IncSerialAllocations(policy, scope string) {
	if c == nil {
		return
	}
	SerialAllocationsTotal.WithLabelValues(c.service, policy, scope).Inc()
}

// AddSerialRangeValues adds n to the range values counter.
func (c *Collector) AddSerialRangeValues(policy string, n int64) {
	if c == nil {
		return
	}
	SerialRangeValuesTotal.WithLabelValues(c.service, policy).Add(float64(n))
}

// AddSerialResets adds n to the resets counter.
func (c *Collector) AddSerialResets(n int) {
	if c == nil {
		return
	}
	SerialResetsTotal.WithLabelValues(c.service).Add(float64(n))
}

// IncStoreErrors increments the store errors counter for an operation.
func (c *Collector) IncStoreErrors(operation string) {
	if c == nil {
		return
	}
	StoreErrorsTotal.WithLabelValues(c.service, operation).Inc()
}

// IncStoreRetries increments the store retries counter for an operation.
func (c *Collector) IncStoreRetries(operation string) {
	if c == nil {
		return
	}
	StoreRetriesTotal.WithLabelValues(c.service, operation).Inc()
}

// ObserveStoreLatency records a store call latency observation.
func (c *Collector) ObserveStoreLatency(operation string, seconds float64) {
	if c == nil {
		return
	}
	StoreLatency.WithLabelValues(c.service, operation).Observe(seconds)
}

// IncCodesComposed increments the composed codes counter for a mode ("rule" or "preview").
func (c *Collector) IncCodesComposed(mode string) {
	if c == nil {
		return
	}
	CodesComposedTotal.WithLabelValues(c.service, mode).Inc()
}

// IncCompositionErrors increments the composition errors counter for a segment type.
func (c *Collector) IncCompositionErrors(segment string) {
	if c == nil {
		return
	}
	CompositionErrorsTotal.WithLabelValues(c.service, segment).Inc()
}

// IncBatchJobs increments the batch jobs counter for a final status.
func (c *Collector) IncBatchJobs(status string) {
	if c == nil {
		return
	}
	BatchJobsTotal.WithLabelValues(c.service, status).Inc()
}

// AddBatchItems adds succeeded and failed item counts.
func (c *Collector) AddBatchItems(succeeded, failed int) {
	if c == nil {
		return
	}
	BatchItemsTotal.WithLabelValues(c.service, "success").Add(float64(succeeded))
	BatchItemsTotal.WithLabelValues(c.service, "error").Add(float64(failed))
}

// IncActiveBatchJobs increments the active jobs gauge.
func (c *Collector) IncActiveBatchJobs() {
	if c == nil {
		return
	}
	ActiveBatchJobs.WithLabelValues(c.service).Inc()
}

// DecActiveBatchJobs decrements the active jobs gauge.
func (c *Collector) DecActiveBatchJobs() {
	if c == nil {
		return
	}
	ActiveBatchJobs.WithLabelValues(c.service).Dec()
}

// ObserveBatchDuration records a batch duration observation for a mode ("sync" or "async").
func (c *Collector) ObserveBatchDuration(mode string, seconds float64) {
	if c == nil {
		return
	}
	BatchDuration.WithLabelValues(c.service, mode).Observe(seconds)
}
