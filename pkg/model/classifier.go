// Package model loads classifier artifacts and owns the process-wide
// classifier handle.
package model

// Classifier is a loaded, read-only binary classifier.
//
// Implementations must be safe for concurrent use: once loaded, a classifier is
// shared by every request and never mutated.
type Classifier interface {
	// PredictProba returns class-membership probabilities for one row:
	// index 0 is not-fraud, index 1 is fraud.
	PredictProba(row []float64) ([]float64, error)

	// NumFeatures is the row width the classifier was trained on.
	NumFeatures() int
}
