package ml

import (
	"errors"
	"fmt"
	"sort"
)

// CategoricalEncoder one-hot encodes a fixed set of categorical columns.
// The indicator columns are frozen at fit time: a category that was not seen
// during Fit encodes as all zeros and never adds a column.
type CategoricalEncoder struct {
	variables  []string
	categories map[string][]string
	fitted     bool
}

// EncoderState is the fitted state persisted in a model artifact.
type EncoderState struct {
	Variables  []string            `json:"variables"`
	Categories map[string][]string `json:"categories"`
}

func NewCategoricalEncoder(variables []string) *CategoricalEncoder {
	return &CategoricalEncoder{variables: append([]string(nil), variables...)}
}

func (e *CategoricalEncoder) Fit(f *Frame) error {
	if f == nil || f.Len() == 0 {
		return ErrEmptyFrame
	}
	categories := make(map[string][]string, len(e.variables))
	for _, variable := range e.variables {
		col, ok := f.Column(variable)
		if !ok {
			return &MissingFeatureError{Feature: variable}
		}
		seen := make(map[string]struct{})
		for _, v := range col {
			seen[v.Key()] = struct{}{}
		}
		values := make([]string, 0, len(seen))
		for key := range seen {
			values = append(values, key)
		}
		sort.Strings(values)
		categories[variable] = values
	}
	e.categories = categories
	e.fitted = true
	return nil
}

func (e *CategoricalEncoder) Transform(f *Frame) (*Frame, error) {
	if !e.fitted {
		return nil, &NotFittedError{Stage: "categorical encoder"}
	}
	if f == nil {
		return nil, ErrEmptyFrame
	}

	declared := make(map[string]bool, len(e.variables))
	for _, variable := range e.variables {
		declared[variable] = true
	}

	columns := make([]string, 0, f.Width())
	data := make([][]Value, 0, f.Width())
	for _, name := range f.columns {
		if declared[name] {
			continue
		}
		col, _ := f.Column(name)
		columns = append(columns, name)
		data = append(data, col)
	}

	for _, variable := range e.variables {
		col, ok := f.Column(variable)
		if !ok {
			// Input was already one-hot encoded upstream; the selector enforces the indicators.
			continue
		}
		for _, category := range e.categories[variable] {
			indicator := make([]Value, f.Len())
			for r, v := range col {
				if v.Key() == category {
					indicator[r] = Number(1)
				} else {
					indicator[r] = Number(0)
				}
			}
			columns = append(columns, IndicatorName(variable, category))
			data = append(data, indicator)
		}
	}

	out, err := newFrame(columns, data, f.Len())
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return out, nil
}

func (e *CategoricalEncoder) FitTransform(f *Frame) (*Frame, error) {
	if err := e.Fit(f); err != nil {
		return nil, err
	}
	return e.Transform(f)
}

func (e *CategoricalEncoder) Variables() []string {
	return append([]string(nil), e.variables...)
}

// Categories returns a copy of the fitted categories per variable.
func (e *CategoricalEncoder) Categories() map[string][]string {
	out := make(map[string][]string, len(e.categories))
	for k, v := range e.categories {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// IndicatorColumns lists every indicator column the fitted encoder can produce.
func (e *CategoricalEncoder) IndicatorColumns() []string {
	var names []string
	for _, variable := range e.variables {
		for _, category := range e.categories[variable] {
			names = append(names, IndicatorName(variable, category))
		}
	}
	return names
}

func (e *CategoricalEncoder) State() (EncoderState, error) {
	if !e.fitted {
		return EncoderState{}, &NotFittedError{Stage: "categorical encoder"}
	}
	return EncoderState{Variables: e.Variables(), Categories: e.Categories()}, nil
}

func restoreEncoder(state EncoderState) (*CategoricalEncoder, error) {
	e := NewCategoricalEncoder(state.Variables)
	e.categories = make(map[string][]string, len(state.Variables))
	for _, variable := range state.Variables {
		values, ok := state.Categories[variable]
		if !ok || len(values) == 0 {
			return nil, fmt.Errorf("encoder: no categories for %q", variable)
		}
		if !sort.StringsAreSorted(values) {
			return nil, errors.New("encoder: categories must be sorted")
		}
		e.categories[variable] = append([]string(nil), values...)
	}
	e.fitted = true
	return e, nil
}

func IndicatorName(variable, category string) string {
	return variable + "_" + category
}
