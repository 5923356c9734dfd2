package ml

// FeatureSelector keeps a predeclared set of columns. It has no fit step.
// Column order is left as the input has it; FeatureAligner fixes it afterwards.
type FeatureSelector struct {
	features []string
}

func NewFeatureSelector(features []string) *FeatureSelector {
	return &FeatureSelector{features: append([]string(nil), features...)}
}

func (s *FeatureSelector) Features() []string {
	return append([]string(nil), s.features...)
}

func (s *FeatureSelector) Transform(f *Frame) (*Frame, error) {
	if f == nil {
		return nil, ErrEmptyFrame
	}
	wanted := make(map[string]bool, len(s.features))
	for _, name := range s.features {
		if !f.Has(name) {
			return nil, &MissingFeatureError{Feature: name}
		}
		wanted[name] = true
	}

	keep := make([]string, 0, len(s.features))
	for _, name := range f.columns {
		if wanted[name] {
			keep = append(keep, name)
		}
	}
	return f.selectColumns(keep), nil
}
