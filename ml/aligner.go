package ml

import "sort"

// FeatureAligner sorts columns by name so the scaler and classifier, which work
// positionally, see the same layout no matter how the input was ordered.
type FeatureAligner struct{}

func (FeatureAligner) Transform(f *Frame) (*Frame, error) {
	if f == nil {
		return nil, ErrEmptyFrame
	}
	columns := f.Columns()
	sort.Strings(columns)
	return f.selectColumns(columns), nil
}
