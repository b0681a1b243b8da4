package memory

import (
	"sync"
	"time"

	"fraud-gate/pkg/metrics"
)

// MemoryCollector implements metrics.Collector in memory. It backs tests and
// the JSON metrics endpoint.
type MemoryCollector struct {
	mu sync.RWMutex

	modelLoads      int64
	modelLoadErrors int64

	decisions       map[string]int64
	probabilities   []float64
	latencies       []time.Duration
	inferenceErrors map[string]int64
	unavailable     int64

	stores map[string]*StoreMetrics
}

// StoreMetrics holds metrics for a single memo store.
type StoreMetrics struct {
	Hits          int64                `json:"hits"`
	Misses        int64                `json:"misses"`
	Sets          int64                `json:"sets"`
	SetErrors     int64                `json:"set_errors"`
	CircuitState  metrics.CircuitState `json:"circuit_state"`
	CircuitOpens  int64                `json:"circuit_opens"`
	QueueDepth    int                  `json:"queue_depth"`
	DroppedWrites int64                `json:"dropped_writes"`
}

// Snapshot is a point-in-time copy of everything recorded.
type Snapshot struct {
	ModelLoads       int64                   `json:"model_loads"`
	ModelLoadErrors  int64                   `json:"model_load_errors"`
	Decisions        map[string]int64        `json:"decisions"`
	InferenceErrors  map[string]int64        `json:"inference_errors"`
	Unavailable      int64                   `json:"unavailable"`
	AvgProbability   float64                 `json:"avg_probability"`
	AvgLatencyMillis float64                 `json:"avg_latency_ms"`
	Stores           map[string]StoreMetrics `json:"stores"`
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		decisions:       make(map[string]int64),
		inferenceErrors: make(map[string]int64),
		stores:          make(map[string]*StoreMetrics),
	}
}

// store returns the metrics for name, creating them if needed. Callers hold mu.
func (mc *MemoryCollector) store(name string) *StoreMetrics {
	sm, ok := mc.stores[name]
	if !ok {
		sm = &StoreMetrics{}
		mc.stores[name] = sm
	}
	return sm
}

func (mc *MemoryCollector) RecordModelLoad(success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.modelLoads++
	if !success {
		mc.modelLoadErrors++
	}
}

func (mc *MemoryCollector) RecordDecision(label string, probability float64, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.decisions[label]++
	mc.probabilities = append(mc.probabilities, probability)
	mc.latencies = append(mc.latencies, duration)
}

func (mc *MemoryCollector) RecordInferenceError(reason string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.inferenceErrors[reason]++
}

func (mc *MemoryCollector) RecordUnavailable() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.unavailable++
}

func (mc *MemoryCollector) RecordMemoGet(store string, hit bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.store(store)
	if hit {
		sm.Hits++
	} else {
		sm.Misses++
	}
}

func (mc *MemoryCollector) RecordMemoSet(store string, success bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.store(store)
	sm.Sets++
	if !success {
		sm.SetErrors++
	}
}

func (mc *MemoryCollector) RecordCircuitState(store string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sm := mc.store(store)
	sm.CircuitState = state
	if state == metrics.CircuitOpen {
		sm.CircuitOpens++
	}
}

func (mc *MemoryCollector) RecordQueueDepth(store string, depth int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.store(store).QueueDepth = depth
}

func (mc *MemoryCollector) RecordWriteDropped(store string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.store(store).DroppedWrites++
}

// Decisions returns the number of decisions recorded with label.
func (mc *MemoryCollector) Decisions(label string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.decisions[label]
}

// InferenceErrors returns the number of inference errors recorded with reason.
func (mc *MemoryCollector) InferenceErrors(reason string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.inferenceErrors[reason]
}

// Unavailable returns the number of short-circuited decisions.
func (mc *MemoryCollector) Unavailable() int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.unavailable
}

// Store returns a copy of the metrics recorded for a memo store.
func (mc *MemoryCollector) Store(name string) StoreMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if sm, ok := mc.stores[name]; ok {
		return *sm
	}
	return StoreMetrics{}
}

// Snapshot returns a copy of all metrics.
func (mc *MemoryCollector) Snapshot() interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snap := Snapshot{
		ModelLoads:      mc.modelLoads,
		ModelLoadErrors: mc.modelLoadErrors,
		Decisions:       make(map[string]int64, len(mc.decisions)),
		InferenceErrors: make(map[string]int64, len(mc.inferenceErrors)),
		Unavailable:     mc.unavailable,
		Stores:          make(map[string]StoreMetrics, len(mc.stores)),
	}
	for k, v := range mc.decisions {
		snap.Decisions[k] = v
	}
	for k, v := range mc.inferenceErrors {
		snap.InferenceErrors[k] = v
	}
	for k, v := range mc.stores {
		snap.Stores[k] = *v
	}

	if n := len(mc.probabilities); n > 0 {
		var sum float64
		for _, p := range mc.probabilities {
			sum += p
		}
		snap.AvgProbability = sum / float64(n)
	}
	if n := len(mc.latencies); n > 0 {
		var sum time.Duration
		for _, d := range mc.latencies {
			sum += d
		}
		snap.AvgLatencyMillis = float64(sum) / float64(n) / float64(time.Millisecond)
	}

	return snap
}

// Reset clears all recorded metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.modelLoads = 0
	mc.modelLoadErrors = 0
	mc.decisions = make(map[string]int64)
	mc.probabilities = nil
	mc.latencies = nil
	mc.inferenceErrors = make(map[string]int64)
	mc.unavailable = 0
	mc.stores = make(map[string]*StoreMetrics)
}
