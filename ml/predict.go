package ml

import "fmt"

const (
	ClassNotExtinguished = 0
	ClassExtinguished    = 1
)

type Prediction struct {
	Class       int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

// Label is the human-readable name of the predicted class.
func (p Prediction) Label() string { return ClassLabel(p.Class) }

func ClassLabel(class int) string {
	switch class {
	case ClassExtinguished:
		return "extinguished"
	case ClassNotExtinguished:
		return "not extinguished"
	default:
		return fmt.Sprintf("unknown(%d)", class)
	}
}

// Predict runs one row through the model's frozen pipeline and classifier.
func Predict(m *Model, row FeatureRow) (Prediction, error) {
	f, err := NewFrame([]FeatureRow{row})
	if err != nil {
		return Prediction{}, err
	}
	out, err := PredictFrame(m, f)
	if err != nil {
		return Prediction{}, err
	}
	return out[0], nil
}

func PredictFrame(m *Model, f *Frame) ([]Prediction, error) {
	if m == nil {
		return nil, &NotFittedError{Stage: "model"}
	}
	transformed, err := m.pipeline.Transform(f)
	if err != nil {
		return nil, err
	}
	X, err := transformed.Matrix()
	if err != nil {
		return nil, err
	}
	classes, err := m.classifier.Predict(X)
	if err != nil {
		return nil, err
	}
	proba, err := m.classifier.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]Prediction, len(classes))
	for i := range classes {
		out[i] = Prediction{Class: classes[i], Probability: proba[i]}
	}
	return out, nil
}
