// Package engine turns a feature vector into a FRAUD/SAFE decision.
//
// There is no fallback decision. When the model is unavailable or inference
// fails the engine returns an error, never a SAFE default.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fraud-gate/pkg/features"
	"fraud-gate/pkg/logging"
	"fraud-gate/pkg/metrics"
	"fraud-gate/pkg/model"

	"go.uber.org/zap"
)

// Engine classifies feature vectors with the model held by a Handle.
type Engine struct {
	handle  *model.Handle
	metrics metrics.Collector
	logger  *logging.Logger
}

// NewEngine creates an engine over handle.
func NewEngine(handle *model.Handle) *Engine {
	return NewEngineWithMetrics(handle, metrics.NoOpCollector{})
}

// NewEngineWithMetrics creates an engine with a custom metrics collector.
func NewEngineWithMetrics(handle *model.Handle, collector metrics.Collector) *Engine {
	return &Engine{
		handle:  handle,
		metrics: metrics.OrNoOp(collector),
		logger:  logging.L().Named("engine"),
	}
}

// Handle returns the model handle the engine reads from.
func (e *Engine) Handle() *model.Handle {
	return e.handle
}

// Available initializes the handle if needed and reports whether a model is
// loaded. It returns the ModelUnavailable error otherwise.
func (e *Engine) Available() error {
	return e.handle.Init()
}

// Model returns the loaded model, initializing the handle on first use. A
// missing model is counted as an unavailable decision.
func (e *Engine) Model() (*model.Model, error) {
	m, err := e.handle.Model()
	if err != nil {
		e.metrics.RecordUnavailable()
		return nil, err
	}
	return m, nil
}

// Classify returns the decision for v.
//
// Errors match model.ErrModelUnavailable when no model could be loaded (the
// classifier is not invoked) or ErrInferenceFailed when the classifier could
// not produce a valid probability.
func (e *Engine) Classify(ctx context.Context, v features.Vector) (Decision, error) {
	// Unavailability wins over cancellation.
	m, err := e.Model()
	if err != nil {
		return Decision{}, err
	}

	if err := ctx.Err(); err != nil {
		return Decision{}, e.Canceled(err)
	}

	start := time.Now()
	p, err := e.probability(m.Classifier, v)
	duration := time.Since(start)
	if err != nil {
		var ie *InferenceError
		if errors.As(err, &ie) {
			e.metrics.RecordInferenceError(ie.Reason)
		}
		e.logger.Warn("inference failed",
			zap.String("model_digest", m.Digest),
			zap.Error(err),
		)
		return Decision{}, err
	}

	d := Decide(p)
	e.metrics.RecordDecision(string(d.Label), p, duration)
	e.logger.Debug("classified",
		zap.String("label", string(d.Label)),
		zap.Float64("probability", p),
		zap.Duration("duration", duration),
	)
	return d, nil
}

// Canceled records and returns the inference error for a caller that gave up
// before its decision was ready.
func (e *Engine) Canceled(cause error) error {
	e.metrics.RecordInferenceError(ReasonCanceled)
	return inferenceError(ReasonCanceled, cause)
}

// probability invokes clf and checks its output. Panics in the classifier are
// reported as inference errors.
func (e *Engine) probability(clf model.Classifier, v features.Vector) (p float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = 0, inferenceError(ReasonPanic, fmt.Errorf("classifier panicked: %v", r))
		}
	}()

	if n := clf.NumFeatures(); n != features.Size {
		return 0, inferenceError(ReasonFeatureCount,
			fmt.Errorf("classifier expects %d features, vector has %d", n, features.Size))
	}

	proba, err := clf.PredictProba(v.Slice())
	if err != nil {
		return 0, inferenceError(ReasonClassifier, err)
	}
	if len(proba) != 2 {
		return 0, inferenceError(ReasonShape,
			fmt.Errorf("classifier returned %d class probabilities, want 2", len(proba)))
	}

	p = proba[1]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, inferenceError(ReasonProbability,
			fmt.Errorf("P(fraud) = %v is outside [0, 1]", p))
	}
	return p, nil
}
