// Package training fits the preprocessing pipeline and classifier on the fire
// dataset and publishes the result as a model artifact.
package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fae/dataset"
	"fae/ml"
	"fae/monitoring"
)

const (
	DefaultTestRatio = 0.2
	DefaultSeed      = 42
)

type Config struct {
	Dataset      string              `yaml:"dataset"`
	ArtifactPath string              `yaml:"artifact_path"`
	TestRatio    float64             `yaml:"test_ratio"`
	Seed         int64               `yaml:"seed"`
	Schema       dataset.Schema      `yaml:"schema"`
	Pipeline     ml.PipelineConfig   `yaml:"pipeline"`
	Classifier   ml.ClassifierConfig `yaml:"classifier"`
}

// WithDefaults fills the split parameters and schema when they are unset.
func (c Config) WithDefaults() Config {
	if c.TestRatio == 0 {
		c.TestRatio = DefaultTestRatio
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.Schema.LabelColumn == "" {
		c.Schema = dataset.FireSchema()
	}
	return c
}

func (c Config) Validate() error {
	if c.Dataset == "" {
		return errors.New("training: dataset path is required")
	}
	if c.ArtifactPath == "" {
		return errors.New("training: artifact path is required")
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		return fmt.Errorf("training: test ratio %g must be in (0, 1)", c.TestRatio)
	}
	if c.Schema.LabelColumn == "" {
		return errors.New("training: schema has no label column")
	}
	return c.Pipeline.Validate()
}

// Report summarises a finished run.
type Report struct {
	RunID    string
	Artifact *ml.ModelArtifact
	Path     string
	Metrics  ml.Metrics
	Issues   []dataset.QualityIssue
	Duration time.Duration
}

type Trainer struct {
	log      *zap.Logger
	recorder monitoring.Recorder
}

// NewTrainer reports every run, successful or not, to recorder. recorder may be nil.
func NewTrainer(log *zap.Logger, recorder monitoring.Recorder) *Trainer {
	if recorder == nil {
		recorder = monitoring.Nop
	}
	return &Trainer{log: log.Named("training"), recorder: recorder}
}

// Run loads and cleans the dataset, fits the pipeline and classifier on the
// training split, scores the held-out split and saves the artifact.
func (t *Trainer) Run(ctx context.Context, config Config) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := t.log.With(zap.String("run_id", runID), zap.String("dataset", config.Dataset))

	event := monitoring.Event{
		Type: monitoring.EventTraining,
		Training: &monitoring.TrainingEvent{
			RunID:        runID,
			Dataset:      config.Dataset,
			ArtifactPath: config.ArtifactPath,
		},
	}

	report, err := t.run(ctx, config, runID, event.Training, log)
	event.Training.Duration = time.Since(start)
	if err != nil {
		event.Error = err.Error()
		log.Error("training failed", zap.Error(err))
	} else {
		report.Duration = event.Training.Duration
		event.ModelID = report.Artifact.ID
		log.Info("training finished",
			zap.String("model_id", report.Artifact.ID),
			zap.String("artifact", report.Path),
			zap.Float64("accuracy", report.Metrics.Accuracy),
			zap.Float64("f1", report.Metrics.F1),
			zap.Duration("duration", report.Duration),
		)
	}
	if rerr := t.recorder.Record(ctx, event); rerr != nil {
		log.Warn("record training event", zap.Error(rerr))
	}
	return report, err
}

func (t *Trainer) run(ctx context.Context, config Config, runID string, summary *monitoring.TrainingEvent, log *zap.Logger) (*Report, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	data, err := dataset.Load(config.Dataset, config.Schema, nil)
	if err != nil {
		return nil, err
	}
	summary.Rows = data.Frame.Len()
	summary.Rejected = len(data.Issues)
	summary.Issues = data.Issues
	if len(data.Issues) > 0 {
		log.Warn("rows rejected during cleaning", zap.Int("rejected", len(data.Issues)), zap.Int("kept", data.Frame.Len()))
	}
	if err := ml.ValidateLabels(data.Labels, data.Frame.Len()); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	split, err := dataset.SplitFrame(data.Frame, data.Labels, config.TestRatio, config.Seed)
	if err != nil {
		return nil, err
	}

	pipeline, err := ml.NewPipeline(config.Pipeline)
	if err != nil {
		return nil, err
	}
	trainOut, err := pipeline.FitTransform(split.Train)
	if err != nil {
		return nil, fmt.Errorf("fit pipeline: %w", err)
	}
	X, err := trainOut.Matrix()
	if err != nil {
		return nil, err
	}
	classifier, err := ml.NewClassifier(config.Classifier)
	if err != nil {
		return nil, err
	}
	if err := classifier.Fit(X, split.TrainLabels); err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metrics, err := evaluate(pipeline, classifier, split.Test, split.TestLabels)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	summary.Metrics = metrics

	artifact, err := ml.NewArtifact(pipeline, classifier)
	if err != nil {
		return nil, err
	}
	artifact.Metrics = &metrics
	artifact.Training = &ml.TrainingInfo{
		RunID:     runID,
		Dataset:   config.Dataset,
		Rows:      data.Frame.Len(),
		TrainRows: split.Train.Len(),
		TestRows:  split.Test.Len(),
		TestRatio: config.TestRatio,
		Seed:      config.Seed,
		Rejected:  len(data.Issues),
	}
	if err := ml.SaveArtifact(config.ArtifactPath, artifact); err != nil {
		return nil, err
	}

	return &Report{
		RunID:    runID,
		Artifact: artifact,
		Path:     config.ArtifactPath,
		Metrics:  metrics,
		Issues:   data.Issues,
	}, nil
}

func evaluate(pipeline *ml.Pipeline, classifier ml.Classifier, test *ml.Frame, labels []int) (ml.Metrics, error) {
	out, err := pipeline.Transform(test)
	if err != nil {
		return ml.Metrics{}, err
	}
	X, err := out.Matrix()
	if err != nil {
		return ml.Metrics{}, err
	}
	predicted, err := classifier.Predict(X)
	if err != nil {
		return ml.Metrics{}, err
	}
	return ml.Evaluate(labels, predicted)
}
