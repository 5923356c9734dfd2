package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

const ArtifactVersion = 1

// ModelArtifact is the persisted form of a fitted pipeline and classifier.
type ModelArtifact struct {
	Version    int             `json:"version"`
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Pipeline   PipelineState   `json:"pipeline"`
	Classifier ClassifierState `json:"classifier"`
	Metrics    *Metrics        `json:"metrics,omitempty"`
	Training   *TrainingInfo   `json:"training,omitempty"`
}

// TrainingInfo describes the run that produced an artifact.
type TrainingInfo struct {
	RunID     string  `json:"run_id"`
	Dataset   string  `json:"dataset"`
	Rows      int     `json:"rows"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
	TestRatio float64 `json:"test_ratio"`
	Seed      int64   `json:"seed"`
	Rejected  int     `json:"rejected_rows"`
}

// NewArtifact captures the fitted state of pipeline and classifier under a fresh id.
func NewArtifact(pipeline *Pipeline, classifier Classifier) (*ModelArtifact, error) {
	pipelineState, err := pipeline.State()
	if err != nil {
		return nil, err
	}
	classifierState, err := classifier.State()
	if err != nil {
		return nil, err
	}
	return &ModelArtifact{
		Version:    ArtifactVersion,
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Pipeline:   pipelineState,
		Classifier: classifierState,
	}, nil
}

// SaveArtifact writes the artifact next to path and renames it into place, so a
// concurrent reader sees either the old file or the complete new one.
func SaveArtifact(path string, artifact *ModelArtifact) error {
	if artifact == nil {
		return errors.New("artifact is nil")
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads and restores the model stored at path.
func LoadArtifact(path string) (*Model, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ArtifactNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	artifact, err := DecodeArtifact(path, payload)
	if err != nil {
		return nil, err
	}
	model, err := NewModel(artifact)
	if err != nil {
		return nil, &ArtifactCorruptError{Path: path, Reason: "restore", Err: err}
	}
	return model, nil
}

// DecodeArtifact parses payload and checks the fields every artifact must carry.
// path is only used in error messages.
func DecodeArtifact(path string, payload []byte) (*ModelArtifact, error) {
	var artifact ModelArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, &ArtifactCorruptError{Path: path, Reason: "decode", Err: err}
	}
	switch {
	case artifact.Version != ArtifactVersion:
		return nil, &ArtifactCorruptError{Path: path, Reason: fmt.Sprintf("unsupported version %d", artifact.Version)}
	case artifact.ID == "":
		return nil, &ArtifactCorruptError{Path: path, Reason: "missing id"}
	case len(artifact.Pipeline.SelectedFeatures) == 0:
		return nil, &ArtifactCorruptError{Path: path, Reason: "missing pipeline"}
	case artifact.Classifier.Kind == "":
		return nil, &ArtifactCorruptError{Path: path, Reason: "missing classifier"}
	}
	return &artifact, nil
}

// Model is a restored, immutable pipeline + classifier pair. It is safe for
// concurrent use by any number of predictions.
type Model struct {
	artifact   ModelArtifact
	pipeline   *Pipeline
	classifier Classifier
}

func NewModel(artifact *ModelArtifact) (*Model, error) {
	pipeline, err := RestorePipeline(artifact.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	classifier, err := RestoreClassifier(artifact.Classifier)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	// Probe with one zero row so a width mismatch surfaces at load, not on the first request.
	probe := mat.NewDense(1, len(pipeline.OutputColumns()), nil)
	if _, err := classifier.PredictProba(probe); err != nil {
		return nil, fmt.Errorf("classifier does not match pipeline: %w", err)
	}
	return &Model{artifact: *artifact, pipeline: pipeline, classifier: classifier}, nil
}

func (m *Model) ID() string { return m.artifact.ID }

// Artifact returns the metadata the model was restored from.
func (m *Model) Artifact() ModelArtifact { return m.artifact }

func (m *Model) Pipeline() *Pipeline { return m.pipeline }

func (m *Model) Classifier() Classifier { return m.classifier }

// Features lists the raw columns a serving row must carry.
func (m *Model) Features() []string { return m.pipeline.SelectedFeatures() }
