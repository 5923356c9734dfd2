package monitoring

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"fae/dataset"
	"fae/ml"
)

type EventType string

const (
	EventPrediction      EventType = "prediction"
	EventPredictionError EventType = "prediction_error"
	EventTraining        EventType = "training"
	EventModelReload     EventType = "model_reload"
	EventDataRetrieved   EventType = "data_retrieved"
)

// Event is what the serving and training paths report. Only the payload
// matching Type is set.
type Event struct {
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
	ModelID   string    `json:"model_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`

	Prediction *PredictionEvent `json:"prediction,omitempty"`
	Training   *TrainingEvent   `json:"training,omitempty"`

	// Reason classifies failures (validation, missing_feature, schema, no_model, internal).
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type PredictionEvent struct {
	Input       map[string]float64 `json:"input"`
	Class       int                `json:"class"`
	Label       string             `json:"label"`
	Probability float64            `json:"probability"`
	Cached      bool               `json:"cached"`
	Latency     time.Duration      `json:"latency"`
}

type TrainingEvent struct {
	RunID        string        `json:"run_id"`
	Dataset      string        `json:"dataset"`
	ArtifactPath string        `json:"artifact_path"`
	Rows         int           `json:"rows"`
	Rejected     int           `json:"rejected"`
	Metrics      ml.Metrics    `json:"metrics"`
	Duration     time.Duration `json:"duration"`

	Issues []dataset.QualityIssue `json:"issues,omitempty"`
}

// Recorder receives events. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Recorders fans an event out to every recorder and joins their errors.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nop struct{}

func (nop) Record(context.Context, Event) error { return nil }

// Nop discards every event.
var Nop Recorder = nop{}

// LogRecorder writes events to a zap logger.
type LogRecorder struct {
	log *zap.Logger
}

func NewLogRecorder(log *zap.Logger) *LogRecorder {
	return &LogRecorder{log: log.Named("events")}
}

func (r *LogRecorder) Record(_ context.Context, event Event) error {
	fields := []zap.Field{zap.String("type", string(event.Type))}
	if event.ModelID != "" {
		fields = append(fields, zap.String("model_id", event.ModelID))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}

	switch {
	case event.Prediction != nil:
		p := event.Prediction
		r.log.Info("prediction", append(fields,
			zap.Any("input", p.Input),
			zap.Int("class", p.Class),
			zap.Float64("probability", p.Probability),
			zap.Bool("cached", p.Cached),
			zap.Duration("latency", p.Latency),
		)...)
	case event.Training != nil:
		tr := event.Training
		r.log.Info("training finished", append(fields,
			zap.String("run_id", tr.RunID),
			zap.String("dataset", tr.Dataset),
			zap.String("artifact", tr.ArtifactPath),
			zap.Int("rows", tr.Rows),
			zap.Int("rejected", tr.Rejected),
			zap.Float64("accuracy", tr.Metrics.Accuracy),
			zap.Float64("f1", tr.Metrics.F1),
			zap.Duration("duration", tr.Duration),
		)...)
	case event.Error != "":
		r.log.Warn(string(event.Type), append(fields,
			zap.String("reason", event.Reason),
			zap.String("error", event.Error),
		)...)
	default:
		if event.Detail != "" {
			fields = append(fields, zap.String("detail", event.Detail))
		}
		r.log.Info(string(event.Type), fields...)
	}
	return nil
}
