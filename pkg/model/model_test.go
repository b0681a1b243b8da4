package model_test

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"fraud-gate/pkg/features"
	"fraud-gate/pkg/metrics/memory"
	"fraud-gate/pkg/model"
	_ "fraud-gate/pkg/model/ensemble"
	_ "fraud-gate/pkg/model/linear"
	"fraud-gate/pkg/model/mock"
	"fraud-gate/pkg/transaction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Ensemble(t *testing.T) {
	m, err := model.Open("testdata/ensemble.json")
	require.NoError(t, err)

	assert.Equal(t, "tree_ensemble", m.Kind)
	assert.Equal(t, "paysim-demo-1", m.Version)
	assert.Equal(t, "testdata/ensemble.json", m.Path)
	assert.Len(t, m.Digest, 64)
	assert.Equal(t, features.Size, m.Classifier.NumFeatures())

	v := features.Encode(transaction.Input{
		Type:             transaction.Transfer,
		Step:             10,
		Amount:           50000,
		OldBalanceOrigin: 50000,
		NewBalanceDest:   50000,
	})
	proba, err := m.Classifier.PredictProba(v.Slice())
	require.NoError(t, err)
	require.Len(t, proba, 2)
	assert.InDelta(t, 1/(1+math.Exp(-2.6)), proba[1], 1e-12)
	assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-12)
}

func TestOpen_Logistic(t *testing.T) {
	m, err := model.Open("testdata/logistic.json")
	require.NoError(t, err)
	assert.Equal(t, "logistic", m.Kind)
}

func TestOpen_Failures(t *testing.T) {
	tests := []struct {
		name string
		path string
		is   error
	}{
		{"missing file", "testdata/does-not-exist.json", nil},
		{"corrupt file", "testdata/corrupt.json", nil},
		{"reordered features", "testdata/reordered.json", model.ErrFeatureMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.Open(tt.path)
			require.Error(t, err)

			var le *model.LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.path, le.Path)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestParse_UnknownKind(t *testing.T) {
	_, err := model.Parse([]byte(`{"kind":"random_forest","model":{}}`))
	assert.ErrorIs(t, err, model.ErrUnknownKind)
}

func TestParse_WrongWidth(t *testing.T) {
	_, err := model.Parse([]byte(`{"kind":"logistic","model":{"weights":[1,2,3],"bias":0}}`))
	assert.Error(t, err)
}

func TestKinds(t *testing.T) {
	assert.Subset(t, model.Kinds(), []string{"logistic", "tree_ensemble"})
}

func TestRegister_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		model.Register("logistic", func(json.RawMessage, int) (model.Classifier, error) { return nil, nil })
	})
}

func TestHandle_LoadsOnce(t *testing.T) {
	var loads int32
	clf := mock.Fixed(0.2)
	h := model.NewHandle(func() (*model.Model, error) {
		atomic.AddInt32(&loads, 1)
		return mock.Model(clf), nil
	})
	assert.Equal(t, model.StateUninitialized, h.State())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := h.Model()
			assert.NoError(t, err)
			assert.Same(t, clf, m.Classifier)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	assert.Equal(t, model.StateReady, h.State())
	assert.NoError(t, h.LoadErr())
}

func TestHandle_FailureIsTerminal(t *testing.T) {
	var loads int32
	cause := errors.New("artifact missing")
	collector := memory.NewMemoryCollector()
	h := model.NewHandleWithMetrics(func() (*model.Model, error) {
		atomic.AddInt32(&loads, 1)
		return nil, cause
	}, collector)

	for i := 0; i < 3; i++ {
		_, err := h.Model()
		require.Error(t, err)
		assert.True(t, model.IsUnavailable(err))
		assert.ErrorIs(t, err, cause, "load failure must be replayed on every call")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	assert.Equal(t, model.StateUnavailable, h.State())
	assert.Same(t, cause, h.LoadErr())

	snap := collector.Snapshot().(memory.Snapshot)
	assert.Equal(t, int64(1), snap.ModelLoadErrors)
}

func TestHandle_LoaderPanics(t *testing.T) {
	h := model.NewHandle(func() (*model.Model, error) {
		panic("boom")
	})

	err := h.Init()
	require.Error(t, err)
	assert.True(t, model.IsUnavailable(err))
	assert.Equal(t, model.StateUnavailable, h.State())
}

func TestHandle_NilModel(t *testing.T) {
	h := model.NewHandle(func() (*model.Model, error) { return nil, nil })

	assert.True(t, model.IsUnavailable(h.Init()))
}

func TestFileLoader(t *testing.T) {
	h := model.NewHandle(model.FileLoader("testdata/ensemble.json"))
	require.NoError(t, h.Init())

	empty := model.NewHandle(model.FileLoader(""))
	err := empty.Init()
	assert.True(t, model.IsUnavailable(err))

	var le *model.LoadError
	assert.True(t, errors.As(err, &le))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", model.StateUninitialized.String())
	assert.Equal(t, "ready", model.StateReady.String())
	assert.Equal(t, "unavailable", model.StateUnavailable.String())
}
