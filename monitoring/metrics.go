package monitoring

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on their own registry so several
// instances (tests, embedded servers) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	Predictions      *prometheus.CounterVec
	PredictionErrors *prometheus.CounterVec
	PredictLatency   prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	Reloads          *prometheus.CounterVec
	TrainingRuns     *prometheus.CounterVec
	ModelAccuracy    prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "fae", Name: "predictions_total", Help: "Predictions served by class."},
			[]string{"class"},
		),
		PredictionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "fae", Name: "prediction_errors_total", Help: "Rejected or failed predictions by reason."},
			[]string{"reason"},
		),
		PredictLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: "fae", Name: "predict_duration_seconds", Help: "Time spent computing a prediction.", Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8)},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "fae", Name: "prediction_cache_lookups_total", Help: "Prediction cache lookups by result."},
			[]string{"result"},
		),
		Reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "fae", Name: "model_reloads_total", Help: "Model artifact reloads by result."},
			[]string{"result"},
		),
		TrainingRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "fae", Name: "training_runs_total", Help: "Training runs by result."},
			[]string{"result"},
		),
		ModelAccuracy: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "fae", Name: "model_test_accuracy", Help: "Held-out accuracy of the last trained model."},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "fae", Subsystem: "http", Name: "requests_total", Help: "HTTP requests by route and status code."},
			[]string{"route", "code"},
		),
	}
	m.registry.MustRegister(
		m.Predictions,
		m.PredictionErrors,
		m.PredictLatency,
		m.CacheLookups,
		m.Reloads,
		m.TrainingRuns,
		m.ModelAccuracy,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route string, code int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// Record turns events into counter updates.
func (m *Metrics) Record(_ context.Context, event Event) error {
	switch event.Type {
	case EventPrediction:
		if p := event.Prediction; p != nil {
			m.Predictions.WithLabelValues(strconv.Itoa(p.Class)).Inc()
			if !p.Cached {
				m.PredictLatency.Observe(p.Latency.Seconds())
			}
		}
	case EventPredictionError:
		reason := event.Reason
		if reason == "" {
			reason = "internal"
		}
		m.PredictionErrors.WithLabelValues(reason).Inc()
	case EventModelReload:
		m.Reloads.WithLabelValues(result(event)).Inc()
	case EventTraining:
		m.TrainingRuns.WithLabelValues(result(event)).Inc()
		if event.Training != nil && event.Error == "" {
			m.ModelAccuracy.Set(event.Training.Metrics.Accuracy)
		}
	}
	return nil
}

func result(event Event) string {
	if event.Error != "" {
		return "failed"
	}
	return "ok"
}
