// Package linear implements the "logistic" artifact kind: a logistic regression
// with an optional per-feature standardization step.
package linear

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"fraud-gate/pkg/model"
)

// Kind is the artifact kind handled by this package.
const Kind = "logistic"

func init() {
	model.Register(Kind, decode)
}

// Params is the serialized form of the "model" field.
type Params struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	// Means and Scales standardize each feature before weighting. Both are
	// optional but must be given together.
	Means  []float64 `json:"means,omitempty"`
	Scales []float64 `json:"scales,omitempty"`
}

// Classifier computes P(fraud) = sigmoid(bias + w·x').
type Classifier struct {
	weights []float64
	bias    float64
	means   []float64
	scales  []float64
}

// New builds a classifier from params.
func New(params Params) (*Classifier, error) {
	n := len(params.Weights)
	if n == 0 {
		return nil, errors.New("linear: no weights")
	}
	if (params.Means == nil) != (params.Scales == nil) {
		return nil, errors.New("linear: means and scales must be given together")
	}
	if params.Means != nil && (len(params.Means) != n || len(params.Scales) != n) {
		return nil, fmt.Errorf("linear: standardization has %d means and %d scales for %d weights", len(params.Means), len(params.Scales), n)
	}

	for i, w := range params.Weights {
		if !finite(w) {
			return nil, fmt.Errorf("linear: weight %d is not finite", i)
		}
	}
	if !finite(params.Bias) {
		return nil, errors.New("linear: bias is not finite")
	}
	for i, s := range params.Scales {
		if !finite(s) || s == 0 || !finite(params.Means[i]) {
			return nil, fmt.Errorf("linear: standardization for feature %d is invalid", i)
		}
	}

	return &Classifier{
		weights: append([]float64(nil), params.Weights...),
		bias:    params.Bias,
		means:   append([]float64(nil), params.Means...),
		scales:  append([]float64(nil), params.Scales...),
	}, nil
}

func decode(raw json.RawMessage, numFeatures int) (model.Classifier, error) {
	var params Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	if len(params.Weights) != numFeatures {
		return nil, fmt.Errorf("linear: %d weights for %d features", len(params.Weights), numFeatures)
	}
	return New(params)
}

// NumFeatures implements model.Classifier.
func (c *Classifier) NumFeatures() int {
	return len(c.weights)
}

// PredictProba implements model.Classifier.
func (c *Classifier) PredictProba(row []float64) ([]float64, error) {
	if len(row) != len(c.weights) {
		return nil, fmt.Errorf("linear: row has %d features, want %d", len(row), len(c.weights))
	}

	z := c.bias
	for i, x := range row {
		if len(c.means) > 0 {
			x = (x - c.means[i]) / c.scales[i]
		}
		z += c.weights[i] * x
	}
	if math.IsNaN(z) {
		return nil, errors.New("linear: margin is NaN")
	}

	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

// sigmoid avoids overflow for large negative margins.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
