package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingRecorder struct{ err error }

func (f failingRecorder) Record(context.Context, Event) error { return f.err }

type captureRecorder struct{ events []Event }

func (c *captureRecorder) Record(_ context.Context, e Event) error {
	c.events = append(c.events, e)
	return nil
}

func TestRecordersFanOutAndJoinErrors(t *testing.T) {
	boom := errors.New("boom")
	capture := &captureRecorder{}
	rs := Recorders{capture, nil, failingRecorder{err: boom}, Nop}

	err := rs.Record(context.Background(), Event{Type: EventModelReload, ModelID: "m1"})
	assert.ErrorIs(t, err, boom)
	require.Len(t, capture.events, 1)
	assert.False(t, capture.events[0].Time.IsZero())
}

func TestLogRecorderWritesPredictionFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewLogRecorder(zap.New(core))

	require.NoError(t, r.Record(context.Background(), Event{
		Type:    EventPrediction,
		ModelID: "m1",
		Prediction: &PredictionEvent{
			Input: map[string]float64{"SIZE": 3},
			Class: 1,
		},
	}))
	entries := logs.FilterMessage("prediction").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "m1", fields["model_id"])
	assert.EqualValues(t, 1, fields["class"])

	require.NoError(t, r.Record(context.Background(), Event{Type: EventPredictionError, Reason: "validation", Error: "bad"}))
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, Event{Type: EventPrediction, Prediction: &PredictionEvent{Class: 1, Latency: time.Millisecond}}))
	require.NoError(t, m.Record(ctx, Event{Type: EventPrediction, Prediction: &PredictionEvent{Class: 1, Cached: true}}))
	require.NoError(t, m.Record(ctx, Event{Type: EventPredictionError, Reason: "validation"}))
	require.NoError(t, m.Record(ctx, Event{Type: EventModelReload, Error: "corrupt"}))
	require.NoError(t, m.Record(ctx, Event{Type: EventTraining, Training: &TrainingEvent{}}))
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Predictions.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionErrors.WithLabelValues("validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reloads.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrainingRuns.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "fae_predictions_total")
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Record(context.Background(), Event{
		Type:       EventPrediction,
		ModelID:    "m1",
		Prediction: &PredictionEvent{Class: 1, Label: "extinguished"},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, EventPrediction, msg.Type)
	assert.NotEmpty(t, msg.ID)

	var event Event
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, "m1", event.ModelID)
	require.NotNil(t, event.Prediction)
	assert.Equal(t, "extinguished", event.Prediction.Label)

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubRejectsUnknownOrigin(t *testing.T) {
	hub := NewHub(zap.NewNop(), []string{"http://allowed.example"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub)
	defer server.Close()

	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
