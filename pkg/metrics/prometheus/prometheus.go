package prometheus

import (
	"time"

	"fraud-gate/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements metrics.Collector for Prometheus. It is also a
// prometheus.Collector, so it can be passed straight to a registry.
type PrometheusCollector struct {
	namespace string

	// Model handle
	modelLoads    *prometheus.CounterVec
	modelLoadTime prometheus.Histogram

	// Decision engine
	decisions       *prometheus.CounterVec
	probability     prometheus.Histogram
	inferenceTime   prometheus.Histogram
	inferenceErrors *prometheus.CounterVec
	unavailable     prometheus.Counter

	// Decision memo
	memoHits      *prometheus.CounterVec
	memoMisses    *prometheus.CounterVec
	memoSets      *prometheus.CounterVec
	memoErrors    *prometheus.CounterVec
	memoLatency   *prometheus.HistogramVec
	circuitOpens  *prometheus.CounterVec
	circuitState  *prometheus.GaugeVec
	queueDepth    *prometheus.GaugeVec
	droppedWrites *prometheus.CounterVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		namespace: namespace,
		modelLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_loads_total",
				Help:      "Model artifact load attempts by outcome",
			},
			[]string{"status"},
		),
		modelLoadTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_load_duration_seconds",
				Help:      "Model artifact load latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Decisions returned by label",
			},
			[]string{"label"},
		),
		probability: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fraud_probability",
				Help:      "Distribution of P(fraud) returned by the classifier",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
			},
		),
		inferenceTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inference_duration_seconds",
				Help:      "Classifier call latency",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us to ~0.3s
			},
		),
		inferenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inference_errors_total",
				Help:      "Classifier calls that failed, by reason",
			},
			[]string{"reason"},
		),
		unavailable: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_unavailable_total",
				Help:      "Decision requests rejected because no model is loaded",
			},
		),
		memoHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memo_hits_total",
				Help:      "Decision memo hits per store",
			},
			[]string{"store"},
		),
		memoMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memo_misses_total",
				Help:      "Decision memo misses per store",
			},
			[]string{"store"},
		),
		memoSets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memo_sets_total",
				Help:      "Decision memo writes per store",
			},
			[]string{"store"},
		),
		memoErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memo_errors_total",
				Help:      "Decision memo write failures per store",
			},
			[]string{"store"},
		),
		memoLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "memo_duration_seconds",
				Help:      "Decision memo operation latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
			[]string{"store", "operation"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Circuit breaker opens per store",
			},
			[]string{"store"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state per store (0=closed, 1=open, 2=half-open)",
			},
			[]string{"store"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memo_queue_depth",
				Help:      "Pending write-behind operations per store",
			},
			[]string{"store"},
		),
		droppedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memo_dropped_writes_total",
				Help:      "Write-behind operations dropped under backpressure",
			},
			[]string{"store"},
		),
	}
}

func (pc *PrometheusCollector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pc.modelLoads,
		pc.modelLoadTime,
		pc.decisions,
		pc.probability,
		pc.inferenceTime,
		pc.inferenceErrors,
		pc.unavailable,
		pc.memoHits,
		pc.memoMisses,
		pc.memoSets,
		pc.memoErrors,
		pc.memoLatency,
		pc.circuitOpens,
		pc.circuitState,
		pc.queueDepth,
		pc.droppedWrites,
	}
}

// Describe implements prometheus.Collector.
func (pc *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range pc.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (pc *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	for _, c := range pc.collectors() {
		c.Collect(ch)
	}
}

// Register registers all metrics with the given registerer.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	return registry.Register(pc)
}

func (pc *PrometheusCollector) RecordModelLoad(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.modelLoads.WithLabelValues(status).Inc()
	pc.modelLoadTime.Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordDecision(label string, probability float64, duration time.Duration) {
	pc.decisions.WithLabelValues(label).Inc()
	pc.probability.Observe(probability)
	pc.inferenceTime.Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordInferenceError(reason string) {
	pc.inferenceErrors.WithLabelValues(reason).Inc()
}

func (pc *PrometheusCollector) RecordUnavailable() {
	pc.unavailable.Inc()
}

func (pc *PrometheusCollector) RecordMemoGet(store string, hit bool, duration time.Duration) {
	if hit {
		pc.memoHits.WithLabelValues(store).Inc()
	} else {
		pc.memoMisses.WithLabelValues(store).Inc()
	}
	pc.memoLatency.WithLabelValues(store, "get").Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordMemoSet(store string, success bool, duration time.Duration) {
	pc.memoSets.WithLabelValues(store).Inc()
	if !success {
		pc.memoErrors.WithLabelValues(store).Inc()
	}
	pc.memoLatency.WithLabelValues(store, "set").Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordCircuitState(store string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(store).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(store).Inc()
	}
}

func (pc *PrometheusCollector) RecordQueueDepth(store string, depth int) {
	pc.queueDepth.WithLabelValues(store).Set(float64(depth))
}

func (pc *PrometheusCollector) RecordWriteDropped(store string) {
	pc.droppedWrites.WithLabelValues(store).Inc()
}
