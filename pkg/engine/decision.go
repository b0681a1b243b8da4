package engine

// Threshold is the fixed decision boundary. A probability strictly greater
// than Threshold is FRAUD; exactly Threshold is SAFE.
const Threshold = 0.5

// Label is the binary outcome of a decision.
type Label string

const (
	LabelFraud Label = "FRAUD"
	LabelSafe  Label = "SAFE"
)

// Decision is the engine's answer for one feature vector.
type Decision struct {
	Label Label `json:"label"`
	// Probability is P(fraud) as reported by the classifier, in [0, 1].
	Probability float64 `json:"probability"`
}

// Decide applies the strict threshold to p.
func Decide(p float64) Decision {
	label := LabelSafe
	if p > Threshold {
		label = LabelFraud
	}
	return Decision{Label: label, Probability: p}
}

// IsFraud reports whether the decision is FRAUD.
func (d Decision) IsFraud() bool {
	return d.Label == LabelFraud
}

// Confidence returns P(fraud) as a percentage, whatever the label.
func (d Decision) Confidence() float64 {
	return d.Probability * 100
}
