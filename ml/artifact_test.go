package ml

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func trainFireModel(t *testing.T, kind string) (*Pipeline, Classifier, []FeatureRow, []int) {
	t.Helper()
	rows, labels := fireDataset(40)
	pipeline, err := NewPipeline(fireConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transformed, err := pipeline.FitTransform(mustFrame(t, rows))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	X, err := transformed.Matrix()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	classifier, err := NewClassifier(ClassifierConfig{Kind: kind, C: 10, ClassWeight: "balanced", MaxDepth: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := classifier.Fit(X, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return pipeline, classifier, rows, labels
}

func TestArtifactRoundTrip(t *testing.T) {
	for _, kind := range []string{KindLogisticRegression, KindDecisionTree} {
		t.Run(kind, func(t *testing.T) {
			pipeline, classifier, rows, _ := trainFireModel(t, kind)
			artifact, err := NewArtifact(pipeline, classifier)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			path := filepath.Join(t.TempDir(), "models", "fae.json")
			if err := SaveArtifact(path, artifact); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			model, err := LoadArtifact(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if model.ID() != artifact.ID {
				t.Fatalf("expected id %s, got %s", artifact.ID, model.ID())
			}

			want, _ := pipeline.State()
			got, err := model.Pipeline().State()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got.Encoder, want.Encoder) {
				t.Fatalf("encoder state changed: %+v vs %+v", got.Encoder, want.Encoder)
			}
			if !reflect.DeepEqual(got.Scaler, want.Scaler) {
				t.Fatalf("scaler state changed: %+v vs %+v", got.Scaler, want.Scaler)
			}
			if !reflect.DeepEqual(got.SelectedFeatures, want.SelectedFeatures) {
				t.Fatalf("selected features changed: %v vs %v", got.SelectedFeatures, want.SelectedFeatures)
			}

			heldOut := []FeatureRow{
				fireRow(4, "lpg", 35, 88, 7.5, 12),
				fireRow(6, "diesel", 170, 101, 2, 50),
				fireRow(2, "thinner", 95, 72, 16, 3),
			}
			frame := mustFrame(t, heldOut)
			before, err := pipeline.Transform(frame)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			X, _ := before.Matrix()
			wantLabels, _ := classifier.Predict(X)
			wantProba, _ := classifier.PredictProba(X)

			predictions, err := PredictFrame(model, frame)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i, p := range predictions {
				if p.Class != wantLabels[i] || p.Probability != wantProba[i] {
					t.Fatalf("row %d: restored model predicted %+v, want %d/%v", i, p, wantLabels[i], wantProba[i])
				}
			}

			// Serving a training row reproduces its training-time class.
			trained, _ := pipeline.Transform(mustFrame(t, rows))
			trainX, _ := trained.Matrix()
			trainLabels, _ := classifier.Predict(trainX)
			for i, row := range rows {
				p, err := Predict(model, row)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if p.Class != trainLabels[i] {
					t.Fatalf("row %d: served %d, trained %d", i, p.Class, trainLabels[i])
				}
			}
		})
	}
}

func TestLogisticModelLearnsFireDataset(t *testing.T) {
	pipeline, classifier, rows, labels := trainFireModel(t, KindLogisticRegression)
	transformed, err := pipeline.Transform(mustFrame(t, rows))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	X, _ := transformed.Matrix()
	predicted, err := classifier.Predict(X)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metrics, err := Evaluate(labels, predicted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.Accuracy < 0.9 {
		t.Fatalf("expected accuracy >= 0.9, got %+v", metrics)
	}
}

func TestLoadArtifactNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	_, err := LoadArtifact(path)
	var notFound *ArtifactNotFoundError
	if !errors.As(err, &notFound) || notFound.Path != path {
		t.Fatalf("expected ArtifactNotFoundError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestLoadArtifactCorrupt(t *testing.T) {
	pipeline, classifier, _, _ := trainFireModel(t, KindLogisticRegression)
	artifact, err := NewArtifact(pipeline, classifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	widened := *artifact
	var params logisticParams
	if err := json.Unmarshal(artifact.Classifier.Params, &params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params.Coefficients = append(params.Coefficients, 1)
	widened.Classifier.Params, _ = json.Marshal(params)
	widenedPayload, _ := json.Marshal(widened)

	noID := *artifact
	noID.ID = ""
	noIDPayload, _ := json.Marshal(noID)

	cases := map[string][]byte{
		"truncated":    []byte(`{"version":1,"id":`),
		"empty object": []byte(`{}`),
		"missing id":   noIDPayload,
		"width":        widenedPayload,
	}
	dir := t.TempDir()
	for name, payload := range cases {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, payload, 0o600); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := LoadArtifact(path)
		var corrupt *ArtifactCorruptError
		if !errors.As(err, &corrupt) {
			t.Fatalf("%s: expected ArtifactCorruptError, got %v", name, err)
		}
	}
}

func TestSaveArtifactLeavesNoTempFiles(t *testing.T) {
	pipeline, classifier, _, _ := trainFireModel(t, KindLogisticRegression)
	artifact, err := NewArtifact(pipeline, classifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fae.json")
	for i := 0; i < 2; i++ {
		if err := SaveArtifact(path, artifact); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "fae.json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}
