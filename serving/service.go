package serving

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"fae/ml"
	"fae/monitoring"
)

// Result is a prediction together with the model that produced it.
type Result struct {
	ml.Prediction
	ModelID string
	Cached  bool
}

type Service struct {
	holder   *Holder
	cache    *Cache
	recorder monitoring.Recorder
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewService wires the holder, cache and event sink. metrics may be nil.
func NewService(holder *Holder, cache *Cache, recorder monitoring.Recorder, metrics *monitoring.Metrics, log *zap.Logger) *Service {
	if recorder == nil {
		recorder = monitoring.Nop
	}
	if cache == nil {
		cache = &Cache{}
	}
	holder.OnSwap(func(*ml.Model) { cache.Purge() })
	return &Service{
		holder:   holder,
		cache:    cache,
		recorder: recorder,
		metrics:  metrics,
		log:      log.Named("serving"),
	}
}

func (s *Service) Holder() *Holder { return s.holder }

// Model returns the model currently serving.
func (s *Service) Model() (*ml.Model, error) { return s.holder.Current() }

func (s *Service) Predict(ctx context.Context, row ml.FeatureRow) (Result, error) {
	model, err := s.holder.Current()
	if err != nil {
		s.fail(ctx, "", err)
		return Result{}, err
	}

	start := time.Now()
	prediction, cached := s.cache.Get(model.ID(), row)
	if s.metrics != nil {
		s.metrics.ObserveCache(cached)
	}
	if !cached {
		prediction, err = ml.Predict(model, row)
		if err != nil {
			s.fail(ctx, model.ID(), err)
			return Result{}, err
		}
		s.cache.Add(model.ID(), row, prediction)
	}

	s.record(ctx, monitoring.Event{
		Type:      monitoring.EventPrediction,
		ModelID:   model.ID(),
		RequestID: monitoring.RequestID(ctx),
		Prediction: &monitoring.PredictionEvent{
			Input:       numericInput(row),
			Class:       prediction.Class,
			Label:       prediction.Label(),
			Probability: prediction.Probability,
			Cached:      cached,
			Latency:     time.Since(start),
		},
	})
	return Result{Prediction: prediction, ModelID: model.ID(), Cached: cached}, nil
}

// Reload loads the artifact from disk now instead of waiting for the watcher.
func (s *Service) Reload(ctx context.Context) (*ml.Model, error) {
	return s.holder.Load(ctx)
}

// RecordRejected reports a request rejected before it reached the model.
func (s *Service) RecordRejected(ctx context.Context, reason string, err error) {
	modelID := ""
	if m, cerr := s.holder.Current(); cerr == nil {
		modelID = m.ID()
	}
	s.record(ctx, monitoring.Event{
		Type:      monitoring.EventPredictionError,
		ModelID:   modelID,
		RequestID: monitoring.RequestID(ctx),
		Reason:    reason,
		Error:     err.Error(),
	})
}

func (s *Service) fail(ctx context.Context, modelID string, err error) {
	s.record(ctx, monitoring.Event{
		Type:      monitoring.EventPredictionError,
		ModelID:   modelID,
		RequestID: monitoring.RequestID(ctx),
		Reason:    Reason(err),
		Error:     err.Error(),
	})
}

func (s *Service) record(ctx context.Context, event monitoring.Event) {
	if err := s.recorder.Record(ctx, event); err != nil {
		s.log.Warn("record event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Reason classifies a prediction error for metrics and logs.
func Reason(err error) string {
	var missing *ml.MissingFeatureError
	var notFitted *ml.NotFittedError
	switch {
	case errors.Is(err, ErrNoModel):
		return "no_model"
	case errors.As(err, &missing):
		return "missing_feature"
	case errors.Is(err, ml.ErrSchemaMismatch):
		return "schema"
	case errors.Is(err, ml.ErrNonNumeric):
		return "non_numeric"
	case errors.As(err, &notFitted):
		return "not_fitted"
	default:
		return "internal"
	}
}

func numericInput(row ml.FeatureRow) map[string]float64 {
	input := make(map[string]float64, len(row))
	for _, f := range row {
		if !f.Value.Categorical {
			input[f.Name] = f.Value.Number
		}
	}
	return input
}
