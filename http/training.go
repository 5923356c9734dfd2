package http

import (
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"fae/ml"
	"fae/serving"
	"fae/training"
)

var (
	errTrainingDisabled = errors.New("training is not configured")
	errTrainingBusy     = errors.New("a training run is already in progress")
)

// trainer runs one training job at a time and swaps the result into serving.
type trainer struct {
	mu      sync.Mutex
	runner  *training.Trainer
	config  training.Config
	service *serving.Service
	log     *zap.Logger
}

// TrainResponse is the body returned by POST /api/train.
type TrainResponse struct {
	RunID        string     `json:"run_id"`
	ModelID      string     `json:"model_id"`
	ArtifactPath string     `json:"artifact_path"`
	Metrics      ml.Metrics `json:"metrics"`
	Rejected     int        `json:"rejected_rows"`
	Reloaded     bool       `json:"reloaded"`
}

func (t *trainer) handleTrain(w http.ResponseWriter, r *http.Request) {
	if t == nil || t.runner == nil {
		writeError(w, errTrainingDisabled)
		return
	}
	if !t.mu.TryLock() {
		writeError(w, errTrainingBusy)
		return
	}
	defer t.mu.Unlock()

	report, err := t.runner.Run(r.Context(), t.config)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := TrainResponse{
		RunID:        report.RunID,
		ModelID:      report.Artifact.ID,
		ArtifactPath: report.Path,
		Metrics:      report.Metrics,
		Rejected:     len(report.Issues),
	}
	// Only swap when training wrote the artifact serving reads.
	if report.Path == t.service.Holder().Path() {
		if _, err := t.service.Reload(r.Context()); err != nil {
			t.log.Error("reload after training failed", zap.Error(err))
		} else {
			resp.Reloaded = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
