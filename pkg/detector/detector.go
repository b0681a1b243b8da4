// Package detector runs the full request path for one transaction: validate,
// encode, check the model, consult the decision memo, classify and memoize.
package detector

import (
	"context"

	"fraud-gate/pkg/cache"
	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/features"
	"fraud-gate/pkg/logging"
	"fraud-gate/pkg/transaction"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Result is the answer for one transaction. Vector is exactly what was sent
// to the classifier (or, for a memo hit, what would have been).
type Result struct {
	ID          uuid.UUID          `json:"id"`
	Decision    engine.Decision    `json:"decision"`
	Vector      features.Vector    `json:"vector"`
	Features    []features.Feature `json:"features"`
	Cached      bool               `json:"cached"`
	ModelDigest string             `json:"model_digest"`
}

// Detector evaluates transactions. It is safe for concurrent use.
type Detector struct {
	engine *engine.Engine
	memo   *Memo
	sf     singleflight.Group
	logger *logging.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithMemo enables the decision memo.
func WithMemo(m *Memo) Option {
	return func(d *Detector) {
		d.memo = m
	}
}

// WithLogger sets the logger. The default is the process-wide logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// New creates a detector over e.
func New(e *engine.Engine, opts ...Option) *Detector {
	d := &Detector{engine: e}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.OrGlobal(d.logger).Named("detector")
	return d
}

// Engine returns the decision engine.
func (d *Detector) Engine() *engine.Engine {
	return d.engine
}

// Encode validates in and returns its feature vector. It needs no model.
func (d *Detector) Encode(in transaction.Input) (features.Vector, error) {
	if err := transaction.Validate(in); err != nil {
		return features.Vector{}, err
	}
	return features.Encode(in), nil
}

// Evaluate returns the decision for in.
//
// Errors match transaction.ErrInputContract for invalid input,
// model.ErrModelUnavailable when no model is loaded and
// engine.ErrInferenceFailed when classification failed. A memo entry is
// never used while the model is unavailable.
func (d *Detector) Evaluate(ctx context.Context, in transaction.Input) (*Result, error) {
	v, err := d.Encode(in)
	if err != nil {
		return nil, err
	}

	m, err := d.engine.Model()
	if err != nil {
		return nil, err
	}

	key := cache.DecisionKey(m.Digest, v)
	res := &Result{
		ID:          uuid.New(),
		Vector:      v,
		Features:    v.Named(),
		ModelDigest: m.Digest,
	}

	if dec, ok := d.lookup(ctx, key); ok {
		res.Decision = dec
		res.Cached = true
		d.logResult(res)
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, d.engine.Canceled(err)
	}

	// The shared call must not inherit one caller's cancellation; each caller
	// waits on its own context instead. The call memoizes exactly once.
	ch := d.sf.DoChan(key, func() (interface{}, error) {
		detached := context.WithoutCancel(ctx)
		dec, err := d.engine.Classify(detached, v)
		if err == nil {
			d.remember(detached, key, dec)
		}
		return dec, err
	})
	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		return nil, d.engine.Canceled(ctx.Err())
	}
	if out.Err != nil {
		return nil, out.Err
	}
	res.Decision = out.Val.(engine.Decision)

	d.logResult(res)
	return res, nil
}

func (d *Detector) lookup(ctx context.Context, key string) (engine.Decision, bool) {
	if d.memo == nil {
		return engine.Decision{}, false
	}

	dec, err := d.memo.Layer.Get(ctx, key)
	if err == nil {
		return dec, true
	}
	if !cache.IsNotFound(err) {
		d.logger.Debug("memo lookup failed, classifying",
			zap.String("key", key),
			zap.String("class", cache.ClassifyError(err)),
			zap.Error(err),
		)
	}
	return engine.Decision{}, false
}

func (d *Detector) remember(ctx context.Context, key string, dec engine.Decision) {
	if d.memo == nil {
		return
	}
	err := d.memo.Writer.Write(ctx, key, dec, d.memo.TTL())
	if err != nil {
		d.logger.Debug("memo write skipped", zap.String("key", key), zap.Error(err))
	}
}

func (d *Detector) logResult(res *Result) {
	d.logger.Info("transaction evaluated",
		zap.String("id", res.ID.String()),
		zap.String("label", string(res.Decision.Label)),
		zap.Float64("probability", res.Decision.Probability),
		zap.Bool("cached", res.Cached),
	)
}

// Close flushes and closes the memo, if any.
func (d *Detector) Close() error {
	if d.memo == nil {
		return nil
	}
	return d.memo.Close()
}

// Memo returns the decision memo, or nil when it is disabled.
func (d *Detector) Memo() *Memo {
	return d.memo
}

