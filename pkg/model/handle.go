package model

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fraud-gate/pkg/logging"
	"fraud-gate/pkg/metrics"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Handle.
type State int32

const (
	// StateUninitialized means no load has been attempted yet.
	StateUninitialized State = iota
	// StateReady means the classifier is loaded and immutable.
	StateReady
	// StateUnavailable means the load failed. It is terminal for the process.
	StateUnavailable
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Loader produces the model a Handle will hold.
type Loader func() (*Model, error)

// FileLoader returns a Loader reading the artifact at path.
func FileLoader(path string) Loader {
	return func() (*Model, error) {
		if path == "" {
			return nil, &LoadError{Err: errors.New("no artifact path configured")}
		}
		return Open(path)
	}
}

// Handle is the process-wide reference to the classifier.
//
// The first call to Init (or Model) runs the loader exactly once, even under
// concurrent callers. Success moves the handle to StateReady; failure moves it
// to StateUnavailable and the failure is replayed to every later caller. There
// is no reload and no retry.
type Handle struct {
	load    Loader
	once    sync.Once
	state   atomic.Int32
	model   *Model
	err     error
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewHandle creates an uninitialized handle around load.
func NewHandle(load Loader) *Handle {
	return NewHandleWithMetrics(load, metrics.NoOpCollector{})
}

// NewHandleWithMetrics creates an uninitialized handle with a custom metrics collector.
func NewHandleWithMetrics(load Loader, collector metrics.Collector) *Handle {
	return &Handle{
		load:    load,
		metrics: metrics.OrNoOp(collector),
		logger:  logging.L().Named("model"),
	}
}

// NewReadyHandle wraps an already-loaded model.
func NewReadyHandle(m *Model) *Handle {
	h := NewHandle(func() (*Model, error) { return m, nil })
	if err := h.Init(); err != nil {
		panic(fmt.Sprintf("model: NewReadyHandle: %v", err))
	}
	return h
}

// Init loads the model if no load has been attempted. It returns nil when the
// handle is ready and an error matching ErrModelUnavailable otherwise.
func (h *Handle) Init() error {
	h.once.Do(h.initialize)
	if h.State() == StateReady {
		return nil
	}
	return unavailable(h.err)
}

// Model returns the loaded model, initializing the handle on first use.
func (h *Handle) Model() (*Model, error) {
	if err := h.Init(); err != nil {
		return nil, err
	}
	return h.model, nil
}

// State returns the current lifecycle state without triggering a load.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// LoadErr returns the captured load failure, or nil.
func (h *Handle) LoadErr() error {
	if h.State() != StateUnavailable {
		return nil
	}
	return h.err
}

func (h *Handle) initialize() {
	start := time.Now()
	m, err := h.safeLoad()
	if err == nil && (m == nil || m.Classifier == nil) {
		err = &LoadError{Err: errors.New("loader returned no classifier")}
	}
	duration := time.Since(start)
	h.metrics.RecordModelLoad(err == nil, duration)

	if err != nil {
		h.err = err
		h.state.Store(int32(StateUnavailable))
		h.logger.Error("model load failed; decisions unavailable for this process",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	h.model = m
	h.state.Store(int32(StateReady))
	h.logger.Info("model loaded",
		zap.String("kind", m.Kind),
		zap.String("version", m.Version),
		zap.String("digest", m.Digest),
		zap.String("path", m.Path),
		zap.Duration("duration", duration),
	)
}

func (h *Handle) safeLoad() (m *Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, &LoadError{Err: fmt.Errorf("loader panicked: %v", r)}
		}
	}()
	return h.load()
}
