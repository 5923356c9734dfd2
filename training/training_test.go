package training

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fae/ml"
	"fae/monitoring"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []monitoring.Event
}

func (c *captureRecorder) Record(_ context.Context, e monitoring.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

// writeFireCSV writes n clean rows plus one row the cleaner rejects.
func writeFireCSV(t *testing.T, n int) string {
	t.Helper()
	fuels := []string{"gasoline", "kerosene", "lpg", "thinner"}
	var b strings.Builder
	b.WriteString("SIZE,FUEL,DISTANCE,DESIBEL,AIRFLOW,FREQUENCY,STATUS\n")
	for i := 0; i < n; i++ {
		status := i % 2
		distance := 150 + (i%5)*10
		if status == 1 {
			distance = 10 + (i%5)*10
		}
		fmt.Fprintf(&b, "%d,%s,%d,%d,%.1f,%d,%d\n", 1+i%7, fuels[(i/2)%4], distance, 70+(i*7)%40, float64((i*3)%17), 1+(i*5)%70, status)
	}
	b.WriteString("3,lpg,-10,90,2.0,10,1\n")
	path := filepath.Join(t.TempDir(), "data_fire.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func testConfig(t *testing.T, data string) Config {
	return Config{
		Dataset:      data,
		ArtifactPath: filepath.Join(t.TempDir(), "models", "fae.json"),
		Pipeline: ml.PipelineConfig{
			CategoricalVariables: []string{"FUEL"},
			SelectedFeatures:     []string{"SIZE", "FUEL_lpg", "FUEL_kerosene", "FUEL_thinner", "DISTANCE", "DESIBEL", "AIRFLOW", "FREQUENCY"},
		},
		Classifier: ml.ClassifierConfig{C: 10, ClassWeight: "balanced"},
	}.WithDefaults()
}

func TestRunSavesLoadableArtifact(t *testing.T) {
	recorder := &captureRecorder{}
	trainer := NewTrainer(zap.NewNop(), recorder)
	config := testConfig(t, writeFireCSV(t, 80))

	report, err := trainer.Run(context.Background(), config)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Metrics.Accuracy, 0.9)
	assert.Len(t, report.Issues, 1)
	assert.Equal(t, 16, report.Metrics.Support)

	info := report.Artifact.Training
	require.NotNil(t, info)
	assert.Equal(t, report.RunID, info.RunID)
	assert.Equal(t, 80, info.Rows)
	assert.Equal(t, 64, info.TrainRows)
	assert.Equal(t, 16, info.TestRows)
	assert.Equal(t, 1, info.Rejected)
	assert.EqualValues(t, DefaultSeed, info.Seed)

	model, err := ml.LoadArtifact(config.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, report.Artifact.ID, model.ID())
	require.NotNil(t, model.Artifact().Metrics)
	assert.Equal(t, report.Metrics, *model.Artifact().Metrics)

	require.Len(t, recorder.events, 1)
	event := recorder.events[0]
	assert.Equal(t, monitoring.EventTraining, event.Type)
	assert.Empty(t, event.Error)
	assert.Equal(t, report.Artifact.ID, event.ModelID)
	assert.Equal(t, report.Metrics, event.Training.Metrics)
	assert.Equal(t, 1, event.Training.Rejected)
}

func TestRunIsDeterministic(t *testing.T) {
	trainer := NewTrainer(zap.NewNop(), nil)
	data := writeFireCSV(t, 60)

	first, err := trainer.Run(context.Background(), testConfig(t, data))
	require.NoError(t, err)
	second, err := trainer.Run(context.Background(), testConfig(t, data))
	require.NoError(t, err)

	assert.NotEqual(t, first.Artifact.ID, second.Artifact.ID)
	assert.JSONEq(t, string(first.Artifact.Classifier.Params), string(second.Artifact.Classifier.Params))
	assert.Equal(t, first.Artifact.Pipeline, second.Artifact.Pipeline)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestRunRecordsFailure(t *testing.T) {
	recorder := &captureRecorder{}
	trainer := NewTrainer(zap.NewNop(), recorder)
	config := testConfig(t, filepath.Join(t.TempDir(), "missing.csv"))

	_, err := trainer.Run(context.Background(), config)
	require.ErrorIs(t, err, os.ErrNotExist)
	_, statErr := os.Stat(config.ArtifactPath)
	assert.ErrorIs(t, statErr, os.ErrNotExist)

	require.Len(t, recorder.events, 1)
	assert.NotEmpty(t, recorder.events[0].Error)
	assert.Empty(t, recorder.events[0].ModelID)
}

func TestConfigValidate(t *testing.T) {
	config := testConfig(t, "data.csv")
	require.NoError(t, config.Validate())

	bad := config
	bad.TestRatio = 1
	assert.Error(t, bad.Validate())

	bad = config
	bad.ArtifactPath = ""
	assert.Error(t, bad.Validate())

	bad = config
	bad.Pipeline.SelectedFeatures = nil
	assert.Error(t, bad.Validate())
}
