package ml

import (
	"errors"
	"fmt"
)

// PipelineConfig declares the categorical columns and the features the model consumes.
// The same configuration must be used to fit and to transform.
type PipelineConfig struct {
	CategoricalVariables []string       `yaml:"categorical_variables" json:"categorical_variables"`
	SelectedFeatures     []string       `yaml:"selected_features" json:"selected_features"`
	ConstantColumns      ConstantPolicy `yaml:"constant_columns" json:"constant_columns"`
}

func (c PipelineConfig) Validate() error {
	if len(c.SelectedFeatures) == 0 {
		return errors.New("pipeline: selected features are required")
	}
	seen := make(map[string]bool, len(c.SelectedFeatures))
	for _, name := range c.SelectedFeatures {
		if name == "" {
			return errors.New("pipeline: empty selected feature name")
		}
		if seen[name] {
			return fmt.Errorf("pipeline: selected feature %q listed twice", name)
		}
		seen[name] = true
	}
	for _, name := range c.CategoricalVariables {
		if name == "" {
			return errors.New("pipeline: empty categorical variable name")
		}
	}
	if c.ConstantColumns != "" {
		return c.ConstantColumns.Validate()
	}
	return nil
}

// Pipeline runs encoder -> selector -> aligner -> scaler, in that order.
// FitTransform learns encoder categories and scaler bounds; Transform only applies them.
type Pipeline struct {
	encoder  *CategoricalEncoder
	selector *FeatureSelector
	aligner  FeatureAligner
	scaler   *MinMaxScaler
	fitted   bool
	frozen   bool
}

// PipelineState is everything a fitted pipeline needs to transform again.
type PipelineState struct {
	Encoder          EncoderState `json:"encoder"`
	SelectedFeatures []string     `json:"selected_features"`
	Scaler           ScalerState  `json:"scaler"`
}

func NewPipeline(config PipelineConfig) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		encoder:  NewCategoricalEncoder(config.CategoricalVariables),
		selector: NewFeatureSelector(config.SelectedFeatures),
		scaler:   NewMinMaxScaler(config.ConstantColumns),
	}, nil
}

func (p *Pipeline) FitTransform(f *Frame) (*Frame, error) {
	if p.frozen {
		return nil, ErrPipelineFrozen
	}
	// Stages are fit into fresh copies so a failed re-fit keeps the previous state.
	encoder := NewCategoricalEncoder(p.encoder.variables)
	scaler := NewMinMaxScaler(p.scaler.policy)
	encoded, err := encoder.FitTransform(f)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	selected, err := p.selector.Transform(encoded)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	aligned, err := p.aligner.Transform(selected)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	scaled, err := scaler.FitTransform(aligned)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	p.encoder, p.scaler = encoder, scaler
	p.fitted = true
	return scaled, nil
}

func (p *Pipeline) Transform(f *Frame) (*Frame, error) {
	if !p.fitted {
		return nil, &NotFittedError{Stage: "pipeline"}
	}
	encoded, err := p.encoder.Transform(f)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	selected, err := p.selector.Transform(encoded)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	aligned, err := p.aligner.Transform(selected)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	scaled, err := p.scaler.Transform(aligned)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	return scaled, nil
}

// TransformRow runs a single serving row through the fitted stages.
func (p *Pipeline) TransformRow(row FeatureRow) (*Frame, error) {
	f, err := NewFrame([]FeatureRow{row})
	if err != nil {
		return nil, err
	}
	return p.Transform(f)
}

func (p *Pipeline) Fitted() bool { return p.fitted }

// OutputColumns is the fixed column layout the classifier was trained on.
func (p *Pipeline) OutputColumns() []string {
	return p.scaler.Columns()
}

func (p *Pipeline) Encoder() *CategoricalEncoder { return p.encoder }

func (p *Pipeline) Scaler() *MinMaxScaler { return p.scaler }

func (p *Pipeline) SelectedFeatures() []string { return p.selector.Features() }

func (p *Pipeline) State() (PipelineState, error) {
	if !p.fitted {
		return PipelineState{}, &NotFittedError{Stage: "pipeline"}
	}
	encoder, err := p.encoder.State()
	if err != nil {
		return PipelineState{}, err
	}
	scaler, err := p.scaler.State()
	if err != nil {
		return PipelineState{}, err
	}
	return PipelineState{
		Encoder:          encoder,
		SelectedFeatures: p.selector.Features(),
		Scaler:           scaler,
	}, nil
}

// RestorePipeline rebuilds a fitted pipeline from persisted state. The result
// can only transform; calling FitTransform returns ErrPipelineFrozen.
func RestorePipeline(state PipelineState) (*Pipeline, error) {
	config := PipelineConfig{
		CategoricalVariables: state.Encoder.Variables,
		SelectedFeatures:     state.SelectedFeatures,
		ConstantColumns:      state.Scaler.ConstantColumns,
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	encoder, err := restoreEncoder(state.Encoder)
	if err != nil {
		return nil, err
	}
	scaler, err := restoreScaler(state.Scaler)
	if err != nil {
		return nil, err
	}
	if len(scaler.columns) != len(state.SelectedFeatures) {
		return nil, fmt.Errorf("pipeline: scaler has %d columns for %d selected features",
			len(scaler.columns), len(state.SelectedFeatures))
	}
	selected := make(map[string]bool, len(state.SelectedFeatures))
	for _, name := range state.SelectedFeatures {
		selected[name] = true
	}
	for _, name := range scaler.columns {
		if !selected[name] {
			return nil, fmt.Errorf("pipeline: scaler column %q is not a selected feature", name)
		}
	}
	return &Pipeline{
		encoder:  encoder,
		selector: NewFeatureSelector(state.SelectedFeatures),
		scaler:   scaler,
		fitted:   true,
		frozen:   true,
	}, nil
}
