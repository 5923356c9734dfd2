package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegressionConfig mirrors the knobs of the reference model:
// inverse L2 strength C and optional balanced class weights.
type LogisticRegressionConfig struct {
	C           float64 `json:"c"`
	ClassWeight string  `json:"class_weight"`
	MaxIter     int     `json:"max_iter"`
	Tolerance   float64 `json:"tolerance"`
}

const (
	DefaultC         = 0.0005
	DefaultMaxIter   = 1000
	DefaultTolerance = 1e-6
)

// LogisticRegression is an L2-regularised binary logistic regression fitted by
// deterministic full-batch gradient descent. The intercept is not regularised.
type LogisticRegression struct {
	config     LogisticRegressionConfig
	coef       []float64
	intercept  float64
	iterations int
	fitted     bool
}

type logisticParams struct {
	LogisticRegressionConfig
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Iterations   int       `json:"iterations"`
}

func NewLogisticRegression(config LogisticRegressionConfig) (*LogisticRegression, error) {
	if config.C == 0 {
		config.C = DefaultC
	}
	if config.MaxIter == 0 {
		config.MaxIter = DefaultMaxIter
	}
	if config.Tolerance == 0 {
		config.Tolerance = DefaultTolerance
	}
	if config.C < 0 || math.IsInf(config.C, 0) || math.IsNaN(config.C) {
		return nil, fmt.Errorf("logistic regression: C must be positive, got %g", config.C)
	}
	if config.MaxIter < 0 || config.Tolerance < 0 {
		return nil, errors.New("logistic regression: max_iter and tolerance must be positive")
	}
	switch config.ClassWeight {
	case "", "none", "balanced":
	default:
		return nil, fmt.Errorf("logistic regression: unknown class weight %q", config.ClassWeight)
	}
	return &LogisticRegression{config: config}, nil
}

func (m *LogisticRegression) Kind() string { return KindLogisticRegression }

func (m *LogisticRegression) Fit(X mat.Matrix, y []int) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return ErrEmptyFrame
	}
	if err := ValidateLabels(y, r); err != nil {
		return err
	}
	if counts := LabelCounts(y); counts[0] == 0 || counts[1] == 0 {
		return errors.New("logistic regression needs samples of both classes")
	}

	x := mat.DenseCopyOf(X)
	weights := SampleWeights(y, m.config.ClassWeight)
	n := float64(r)
	lambda := 1 / (m.config.C * n)

	// Step size 1/L where L bounds the curvature of the averaged weighted loss.
	lipschitz := lambda
	for i := 0; i < r; i++ {
		sq := 1.0
		for _, v := range x.RawRowView(i) {
			sq += v * v
		}
		lipschitz += 0.25 * weights[i] * sq / n
	}
	step := 1 / lipschitz

	w := mat.NewVecDense(c, nil)
	b := 0.0
	z := mat.NewVecDense(r, nil)
	residual := mat.NewVecDense(r, nil)
	grad := mat.NewVecDense(c, nil)

	iter := 0
	for ; iter < m.config.MaxIter; iter++ {
		z.MulVec(x, w)
		gradB := 0.0
		for i := 0; i < r; i++ {
			d := weights[i] * (sigmoid(z.AtVec(i)+b) - float64(y[i])) / n
			residual.SetVec(i, d)
			gradB += d
		}
		grad.MulVec(x.T(), residual)
		grad.AddScaledVec(grad, lambda, w)

		if mat.Norm(grad, math.Inf(1)) < m.config.Tolerance && math.Abs(gradB) < m.config.Tolerance {
			break
		}
		w.AddScaledVec(w, -step, grad)
		b -= step * gradB
	}

	coef := make([]float64, c)
	for j := range coef {
		coef[j] = w.AtVec(j)
	}
	m.coef = coef
	m.intercept = b
	m.iterations = iter
	m.fitted = true
	return nil
}

func (m *LogisticRegression) PredictProba(X mat.Matrix) ([]float64, error) {
	if !m.fitted {
		return nil, &NotFittedError{Stage: "logistic regression"}
	}
	r, c := X.Dims()
	if c != len(m.coef) {
		return nil, fmt.Errorf("%w: model expects %d features, got %d", ErrSchemaMismatch, len(m.coef), c)
	}
	z := mat.NewVecDense(r, nil)
	z.MulVec(X, mat.NewVecDense(c, append([]float64(nil), m.coef...)))
	proba := make([]float64, r)
	for i := range proba {
		proba[i] = sigmoid(z.AtVec(i) + m.intercept)
	}
	return proba, nil
}

func (m *LogisticRegression) Predict(X mat.Matrix) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(proba))
	for i, p := range proba {
		if p >= 0.5 {
			labels[i] = 1
		}
	}
	return labels, nil
}

func (m *LogisticRegression) Coefficients() []float64 { return append([]float64(nil), m.coef...) }

func (m *LogisticRegression) Intercept() float64 { return m.intercept }

func (m *LogisticRegression) Iterations() int { return m.iterations }

func (m *LogisticRegression) State() (ClassifierState, error) {
	if !m.fitted {
		return ClassifierState{}, &NotFittedError{Stage: "logistic regression"}
	}
	params, err := json.Marshal(logisticParams{
		LogisticRegressionConfig: m.config,
		Coefficients:             m.Coefficients(),
		Intercept:                m.intercept,
		Iterations:               m.iterations,
	})
	if err != nil {
		return ClassifierState{}, err
	}
	return ClassifierState{Kind: KindLogisticRegression, Params: params}, nil
}

func restoreLogisticRegression(raw json.RawMessage) (*LogisticRegression, error) {
	var params logisticParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("logistic regression params: %w", err)
	}
	if len(params.Coefficients) == 0 {
		return nil, errors.New("logistic regression: no coefficients")
	}
	for _, v := range append(params.Coefficients, params.Intercept) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("logistic regression: non-finite coefficient")
		}
	}
	m, err := NewLogisticRegression(params.LogisticRegressionConfig)
	if err != nil {
		return nil, err
	}
	m.coef = params.Coefficients
	m.intercept = params.Intercept
	m.iterations = params.Iterations
	m.fitted = true
	return m, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
