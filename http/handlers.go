package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"fae/db"
	"fae/ml"
	"fae/monitoring"
	"fae/serving"
)

// ReadyMessage is the body of GET /.
const ReadyMessage = "FAE classifier is all ready to go!"

const (
	defaultPredictionLimit = 50
	maxPredictionLimit     = 500
)

type handlers struct {
	service *serving.Service
	store   *db.Store
	trainer *trainer
	log     *zap.Logger
}

func (h *handlers) register(route func(string, http.HandlerFunc)) {
	route("GET /{$}", h.handleReady)
	route("GET /api/health", h.handleHealth)
	route("POST /predict", h.handlePredict)
	route("GET /api/model", h.handleModel)
	route("GET /api/predictions", h.handlePredictions)
	route("GET /api/training/log", h.handleTrainingLog)
	route("GET /api/training/{run_id}/issues", h.handleQualityIssues)
	route("POST /api/train", h.trainer.handleTrain)
}

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// PredictResponse is the body returned by POST /predict.
type PredictResponse struct {
	Prediction  int     `json:"prediction"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	ModelID     string  `json:"model_id"`
	Cached      bool    `json:"cached"`
	Message     string  `json:"message"`
}

// ModelResponse describes the model currently serving.
type ModelResponse struct {
	ID         string           `json:"id"`
	Version    int              `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	Classifier string           `json:"classifier"`
	Features   []string         `json:"features"`
	Columns    []string         `json:"columns"`
	Metrics    *ml.Metrics      `json:"metrics,omitempty"`
	Training   *ml.TrainingInfo `json:"training,omitempty"`
}

func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	h.log.Info(ReadyMessage)
	writeJSON(w, http.StatusOK, ReadyMessage)
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	model, err := h.service.Model()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no_model"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "model_id": model.ID()})
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := DecodeFireRequest(r.Body)
	if err != nil {
		h.service.RecordRejected(ctx, "validation", err)
		writeError(w, err)
		return
	}

	result, err := h.service.Predict(ctx, req.Row())
	if err != nil {
		h.log.Warn("prediction failed",
			zap.String("request_id", monitoring.RequestID(ctx)),
			zap.String("reason", serving.Reason(err)),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Prediction:  result.Class,
		Label:       result.Label(),
		Probability: result.Probability,
		ModelID:     result.ModelID,
		Cached:      result.Cached,
		Message:     fmt.Sprintf("Prediction result: [%d]", result.Class),
	})
}

func (h *handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	model, err := h.service.Model()
	if err != nil {
		writeError(w, err)
		return
	}
	artifact := model.Artifact()
	writeJSON(w, http.StatusOK, ModelResponse{
		ID:         artifact.ID,
		Version:    artifact.Version,
		CreatedAt:  artifact.CreatedAt,
		Classifier: artifact.Classifier.Kind,
		Features:   model.Features(),
		Columns:    model.Pipeline().OutputColumns(),
		Metrics:    artifact.Metrics,
		Training:   artifact.Training,
	})
}

func (h *handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "prediction log is disabled"})
		return
	}
	limit := defaultPredictionLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l <= 0 {
			writeError(w, &ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		limit = min(l, maxPredictionLimit)
	}

	predictions, err := h.store.RecentPredictions(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": predictions, "count": len(predictions)})
}

func (h *handlers) handleTrainingLog(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "training log is disabled"})
		return
	}
	logs, err := h.store.LoadTrainingLog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": logs, "count": len(logs)})
}

func (h *handlers) handleQualityIssues(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "training log is disabled"})
		return
	}
	issues, err := h.store.QualityIssues(r.Context(), r.PathValue("run_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": issues, "count": len(issues)})
}

// statusFor maps an error to the response status.
func statusFor(err error) int {
	var validation *ValidationError
	var missing *ml.MissingFeatureError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, serving.ErrNoModel), errors.Is(err, errTrainingDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, errTrainingBusy):
		return http.StatusConflict
	case errors.As(err, &missing), errors.Is(err, ml.ErrSchemaMismatch), errors.Is(err, ml.ErrNonNumeric):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}
	var validation *ValidationError
	if errors.As(err, &validation) {
		body.Field = validation.Field
		body.Reason = validation.Reason
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal server error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
