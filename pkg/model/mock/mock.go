package mock

import (
	"sync/atomic"
	"time"

	"fraud-gate/pkg/model"
)

// Classifier is a mock implementation of model.Classifier for testing.
// It allows injecting custom behavior and tracks call counts.
type Classifier struct {
	// PredictProbaFunc customizes PredictProba. When nil, Probability is used.
	PredictProbaFunc func(row []float64) ([]float64, error)

	// Probability is the fixed P(fraud) returned when PredictProbaFunc is nil.
	Probability float64

	// Features overrides NumFeatures. Zero means 11.
	Features int

	calls int64
}

// Fixed returns a classifier that always answers p.
func Fixed(p float64) *Classifier {
	return &Classifier{Probability: p}
}

// PredictProba implements model.Classifier.
func (c *Classifier) PredictProba(row []float64) ([]float64, error) {
	atomic.AddInt64(&c.calls, 1)
	if c.PredictProbaFunc != nil {
		return c.PredictProbaFunc(row)
	}
	return []float64{1 - c.Probability, c.Probability}, nil
}

// NumFeatures implements model.Classifier.
func (c *Classifier) NumFeatures() int {
	if c.Features != 0 {
		return c.Features
	}
	return 11
}

// Calls returns how many times PredictProba ran.
func (c *Classifier) Calls() int64 {
	return atomic.LoadInt64(&c.calls)
}

// Model wraps clf in a model.Model with a fixed digest.
func Model(clf model.Classifier) *model.Model {
	return &model.Model{
		Classifier: clf,
		Kind:       "mock",
		Version:    "test",
		Digest:     "0000000000000000000000000000000000000000000000000000000000000000",
		LoadedAt:   time.Now(),
	}
}

// ReadyHandle returns a ready handle holding clf.
func ReadyHandle(clf model.Classifier) *model.Handle {
	return model.NewReadyHandle(Model(clf))
}
