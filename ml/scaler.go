package ml

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ConstantPolicy decides what the scaler does with a column whose fit-time min equals its max.
type ConstantPolicy string

const (
	// ConstantZero scales a constant column to 0.
	ConstantZero ConstantPolicy = "zero"
	// ConstantFail rejects a constant column at fit time with DegenerateColumnError.
	ConstantFail ConstantPolicy = "fail"
)

func (p ConstantPolicy) Validate() error {
	switch p {
	case ConstantZero, ConstantFail:
		return nil
	default:
		return fmt.Errorf("unknown constant column policy %q", p)
	}
}

// MinMaxScaler learns per-column bounds once and reuses them on every transform.
// Values outside the fitted range are not clipped.
type MinMaxScaler struct {
	policy  ConstantPolicy
	columns []string
	mins    []float64
	maxs    []float64
	fitted  bool
}

type ScalerState struct {
	Columns         []string       `json:"columns"`
	Min             []float64      `json:"min"`
	Max             []float64      `json:"max"`
	ConstantColumns ConstantPolicy `json:"constant_columns"`
}

func NewMinMaxScaler(policy ConstantPolicy) *MinMaxScaler {
	if policy == "" {
		policy = ConstantZero
	}
	return &MinMaxScaler{policy: policy}
}

func (s *MinMaxScaler) Fit(f *Frame) error {
	if f == nil || f.Len() == 0 {
		return ErrEmptyFrame
	}
	if err := s.policy.Validate(); err != nil {
		return err
	}
	cols, err := f.Numeric()
	if err != nil {
		return fmt.Errorf("scaler fit: %w", err)
	}

	mins := make([]float64, len(cols))
	maxs := make([]float64, len(cols))
	for c, col := range cols {
		mins[c], maxs[c] = columnBounds(col)
		if mins[c] == maxs[c] && s.policy == ConstantFail {
			return &DegenerateColumnError{Column: f.columns[c], Value: mins[c]}
		}
	}

	s.columns = f.Columns()
	s.mins = mins
	s.maxs = maxs
	s.fitted = true
	return nil
}

func (s *MinMaxScaler) Transform(f *Frame) (*Frame, error) {
	if !s.fitted {
		return nil, &NotFittedError{Stage: "min-max scaler"}
	}
	if f == nil {
		return nil, ErrEmptyFrame
	}
	if !slices.Equal(f.columns, s.columns) {
		return nil, fmt.Errorf("%w: scaler fitted on %v, got %v", ErrSchemaMismatch, s.columns, f.columns)
	}
	cols, err := f.Numeric()
	if err != nil {
		return nil, fmt.Errorf("scaler transform: %w", err)
	}

	out := make([][]float64, len(cols))
	for c, col := range cols {
		scaled := make([]float64, len(col))
		for r, v := range col {
			scaled[r] = NormalizeFeature(v, s.mins[c], s.maxs[c])
		}
		out[c] = scaled
	}
	return numericFrame(f.Columns(), out, f.Len())
}

func (s *MinMaxScaler) FitTransform(f *Frame) (*Frame, error) {
	if err := s.Fit(f); err != nil {
		return nil, err
	}
	return s.Transform(f)
}

// Bounds returns the fitted (min, max) for column.
func (s *MinMaxScaler) Bounds(column string) (float64, float64, bool) {
	i := slices.Index(s.columns, column)
	if i < 0 {
		return 0, 0, false
	}
	return s.mins[i], s.maxs[i], true
}

func (s *MinMaxScaler) Columns() []string {
	return append([]string(nil), s.columns...)
}

func (s *MinMaxScaler) State() (ScalerState, error) {
	if !s.fitted {
		return ScalerState{}, &NotFittedError{Stage: "min-max scaler"}
	}
	return ScalerState{
		Columns:         s.Columns(),
		Min:             append([]float64(nil), s.mins...),
		Max:             append([]float64(nil), s.maxs...),
		ConstantColumns: s.policy,
	}, nil
}

func restoreScaler(state ScalerState) (*MinMaxScaler, error) {
	if len(state.Columns) == 0 {
		return nil, errors.New("scaler: no columns")
	}
	if len(state.Min) != len(state.Columns) || len(state.Max) != len(state.Columns) {
		return nil, fmt.Errorf("scaler: %d columns but %d min and %d max bounds",
			len(state.Columns), len(state.Min), len(state.Max))
	}
	policy := state.ConstantColumns
	if policy == "" {
		policy = ConstantZero
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("scaler: %w", err)
	}
	for i := range state.Columns {
		lo, hi := state.Min[i], state.Max[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || lo > hi {
			return nil, fmt.Errorf("scaler: invalid bounds for %q", state.Columns[i])
		}
	}
	return &MinMaxScaler{
		policy:  policy,
		columns: append([]string(nil), state.Columns...),
		mins:    append([]float64(nil), state.Min...),
		maxs:    append([]float64(nil), state.Max...),
		fitted:  true,
	}, nil
}
