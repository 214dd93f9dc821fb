package telemetry

// Histogram bucket definitions
var (
	// DispatchBuckets covers in-process dispatches, from sub-millisecond
	// sync chains to handlers doing I/O
	DispatchBuckets = []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
)

// Dispatch Metrics
var (
	// DispatchTotal counts publish calls by result (completed, failed)
	DispatchTotal CounterVec = noopCounterVec{}

	// DispatchDurationSeconds measures a publish call across all its channels
	DispatchDurationSeconds Histogram = NoopStat{}

	// HandlerCallsTotal counts handler invocations by shape
	HandlerCallsTotal CounterVec = noopCounterVec{}

	// HandlerErrorsTotal counts failed handler invocations by shape
	HandlerErrorsTotal CounterVec = noopCounterVec{}

	// HandlerDurationSeconds measures a single handler from invocation to settlement
	HandlerDurationSeconds Histogram = NoopStat{}

	// HandlerSkippedTotal counts handlers skipped after an earlier failure
	HandlerSkippedTotal Counter = NoopStat{}
)

// Registry Metrics
var (
	// MatchCacheTotal counts match cache lookups by result (hit, miss)
	MatchCacheTotal CounterVec = noopCounterVec{}

	// RegisteredHandlers tracks registrations ever made, tombstoned included
	RegisteredHandlers Gauge = NoopStat{}

	// LiveHandlers tracks registrations that are not tombstoned
	LiveHandlers Gauge = NoopStat{}
)

// InitMetrics initializes all Prometheus metrics.
// Must be called after InitializeTelemetry().
func InitMetrics() {
	DispatchTotal = NewCounterVec(
		"dispatch_total",
		"Total publish calls by result",
		[]string{"result"},
	)
	DispatchDurationSeconds = NewHistogramWithBuckets(
		"dispatch_duration_seconds",
		"Publish duration in seconds",
		DispatchBuckets,
	)
	HandlerCallsTotal = NewCounterVec(
		"handler_calls_total",
		"Handler invocations by shape",
		[]string{"shape"},
	)
	HandlerErrorsTotal = NewCounterVec(
		"handler_errors_total",
		"Failed handler invocations by shape",
		[]string{"shape"},
	)
	HandlerDurationSeconds = NewHistogramWithBuckets(
		"handler_duration_seconds",
		"Handler duration in seconds",
		DispatchBuckets,
	)
	HandlerSkippedTotal = NewCounter(
		"handler_skipped_total",
		"Handlers skipped because the dispatch had already failed",
	)

	MatchCacheTotal = NewCounterVec(
		"match_cache_total",
		"Match cache lookups by result",
		[]string{"result"},
	)
	RegisteredHandlers = NewGauge(
		"registered_handlers",
		"Handler registrations, tombstoned included",
	)
	LiveHandlers = NewGauge(
		"live_handlers",
		"Handler registrations not yet removed",
	)
}
