package engine_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/features"
	"fraud-gate/pkg/metrics/memory"
	"fraud-gate/pkg/model"
	_ "fraud-gate/pkg/model/ensemble"
	"fraud-gate/pkg/model/mock"
	"fraud-gate/pkg/transaction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferVector() features.Vector {
	return features.Encode(transaction.Input{
		Type:             transaction.Transfer,
		Step:             1,
		Amount:           181,
		OldBalanceOrigin: 181,
	})
}

func TestDecide_Threshold(t *testing.T) {
	tests := []struct {
		p    float64
		want engine.Label
	}{
		{0, engine.LabelSafe},
		{0.12, engine.LabelSafe},
		{0.5, engine.LabelSafe},
		{0.5000001, engine.LabelFraud},
		{0.73, engine.LabelFraud},
		{1, engine.LabelFraud},
	}

	for _, tt := range tests {
		d := engine.Decide(tt.p)
		assert.Equal(t, tt.want, d.Label, "p=%v", tt.p)
		assert.Equal(t, tt.p, d.Probability)
	}
}

func TestDecision_Confidence(t *testing.T) {
	assert.InDelta(t, 73.0, engine.Decide(0.73).Confidence(), 1e-9)
	assert.InDelta(t, 12.0, engine.Decide(0.12).Confidence(), 1e-9)
	assert.InDelta(t, 50.0, engine.Decide(0.5).Confidence(), 1e-9)
}

func TestClassify(t *testing.T) {
	clf := mock.Fixed(0.73)
	collector := memory.NewMemoryCollector()
	e := engine.NewEngineWithMetrics(mock.ReadyHandle(clf), collector)

	d, err := e.Classify(context.Background(), transferVector())
	require.NoError(t, err)
	assert.Equal(t, engine.Decision{Label: engine.LabelFraud, Probability: 0.73}, d)
	assert.Equal(t, int64(1), collector.Decisions("FRAUD"))
}

func TestClassify_ExactlyHalfIsSafe(t *testing.T) {
	e := engine.NewEngine(mock.ReadyHandle(mock.Fixed(0.5)))

	d, err := e.Classify(context.Background(), transferVector())
	require.NoError(t, err)
	assert.Equal(t, engine.LabelSafe, d.Label)
	assert.Equal(t, 0.5, d.Probability)
}

func TestClassify_PassesVectorInOrder(t *testing.T) {
	var seen []float64
	clf := &mock.Classifier{PredictProbaFunc: func(row []float64) ([]float64, error) {
		seen = append([]float64(nil), row...)
		return []float64{0.9, 0.1}, nil
	}}
	e := engine.NewEngine(mock.ReadyHandle(clf))

	v := transferVector()
	_, err := e.Classify(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, v.Slice(), seen)
}

func TestClassify_Deterministic(t *testing.T) {
	m, err := model.Open("../model/testdata/ensemble.json")
	require.NoError(t, err)
	e := engine.NewEngine(model.NewReadyHandle(m))

	first, err := e.Classify(context.Background(), transferVector())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		d, err := e.Classify(context.Background(), transferVector())
		require.NoError(t, err)
		assert.Equal(t, first, d)
	}
}

func TestClassify_Unavailable(t *testing.T) {
	cause := errors.New("no such file")
	var loads int
	collector := memory.NewMemoryCollector()
	h := model.NewHandle(func() (*model.Model, error) {
		loads++
		return nil, cause
	})
	e := engine.NewEngineWithMetrics(h, collector)

	for i := 0; i < 2; i++ {
		d, err := e.Classify(context.Background(), transferVector())
		require.Error(t, err)
		assert.True(t, model.IsUnavailable(err))
		assert.ErrorIs(t, err, cause)
		assert.False(t, engine.IsInferenceError(err))
		assert.Equal(t, engine.Decision{}, d)
	}

	assert.Equal(t, 1, loads, "a failed load is not retried")
	assert.Equal(t, int64(2), collector.Unavailable())
	assert.Error(t, e.Available())
	assert.Equal(t, 1, loads)
}

func TestClassify_UnavailableBeatsCancellation(t *testing.T) {
	h := model.NewHandle(func() (*model.Model, error) {
		return nil, errors.New("no such file")
	})
	e := engine.NewEngine(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 2; i++ {
		_, err := e.Classify(ctx, transferVector())
		require.Error(t, err)
		assert.True(t, model.IsUnavailable(err))
		assert.False(t, engine.IsInferenceError(err))
	}
	assert.Equal(t, model.StateUnavailable, h.State())
}

func TestClassify_InferenceErrors(t *testing.T) {
	tests := []struct {
		name   string
		clf    *mock.Classifier
		reason string
	}{
		{
			name: "classifier error",
			clf: &mock.Classifier{PredictProbaFunc: func([]float64) ([]float64, error) {
				return nil, errors.New("bad row")
			}},
			reason: engine.ReasonClassifier,
		},
		{
			name: "panic",
			clf: &mock.Classifier{PredictProbaFunc: func([]float64) ([]float64, error) {
				panic("index out of range")
			}},
			reason: engine.ReasonPanic,
		},
		{
			name: "single class output",
			clf: &mock.Classifier{PredictProbaFunc: func([]float64) ([]float64, error) {
				return []float64{0.4}, nil
			}},
			reason: engine.ReasonShape,
		},
		{
			name:   "nan probability",
			clf:    mock.Fixed(math.NaN()),
			reason: engine.ReasonProbability,
		},
		{
			name:   "probability above one",
			clf:    mock.Fixed(1.2),
			reason: engine.ReasonProbability,
		},
		{
			name:   "wrong feature count",
			clf:    &mock.Classifier{Features: 12},
			reason: engine.ReasonFeatureCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := memory.NewMemoryCollector()
			h := mock.ReadyHandle(tt.clf)
			e := engine.NewEngineWithMetrics(h, collector)

			_, err := e.Classify(context.Background(), transferVector())
			require.Error(t, err)
			assert.True(t, engine.IsInferenceError(err))
			assert.False(t, model.IsUnavailable(err))

			var ie *engine.InferenceError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.reason, ie.Reason)
			assert.Equal(t, int64(1), collector.InferenceErrors(tt.reason))
			assert.Equal(t, model.StateReady, h.State(), "inference failure must not poison the handle")
		})
	}
}

// widthPanics panics when asked for its row width.
type widthPanics struct{ mock.Classifier }

func (widthPanics) NumFeatures() int { panic("width unknown") }

func TestClassify_PanicInNumFeatures(t *testing.T) {
	e := engine.NewEngine(mock.ReadyHandle(&widthPanics{}))

	_, err := e.Classify(context.Background(), transferVector())
	require.Error(t, err)

	var ie *engine.InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, engine.ReasonPanic, ie.Reason)
}

func TestClassify_ErrorKeepsCause(t *testing.T) {
	cause := errors.New("bad row")
	clf := &mock.Classifier{PredictProbaFunc: func([]float64) ([]float64, error) {
		return nil, cause
	}}
	e := engine.NewEngine(mock.ReadyHandle(clf))

	_, err := e.Classify(context.Background(), transferVector())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, engine.ErrInferenceFailed)
}

func TestClassify_Canceled(t *testing.T) {
	clf := mock.Fixed(0.9)
	e := engine.NewEngine(mock.ReadyHandle(clf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Classify(ctx, transferVector())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, clf.Calls())
}
