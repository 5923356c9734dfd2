package ml

import (
	"encoding/json"

	"gonum.org/v1/gonum/mat"
)

// Classifier is the binary classifier consumed by the pipeline. X is always the
// pipeline's numeric output; Predict and PredictProba expect the fitted width.
type Classifier interface {
	Kind() string
	Fit(X mat.Matrix, y []int) error
	Predict(X mat.Matrix) ([]int, error)
	// PredictProba returns the probability of class 1 for each row.
	PredictProba(X mat.Matrix) ([]float64, error)
	State() (ClassifierState, error)
}

// ClassifierState is the persisted form of a fitted classifier.
type ClassifierState struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// ClassifierConfig selects and parameterises the classifier built for training.
type ClassifierConfig struct {
	Kind        string  `yaml:"kind" json:"kind"`
	C           float64 `yaml:"c" json:"c"`
	ClassWeight string  `yaml:"class_weight" json:"class_weight"`
	MaxIter     int     `yaml:"max_iter" json:"max_iter"`
	Tolerance   float64 `yaml:"tolerance" json:"tolerance"`
	MaxDepth    int     `yaml:"max_depth" json:"max_depth"`
}
