package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fae/dataset"
	"fae/monitoring"
)

const schema = `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT,
        model_id TEXT NOT NULL,
        input TEXT NOT NULL,
        predicted_label INTEGER NOT NULL,
        probability REAL NOT NULL,
        cached INTEGER DEFAULT 0,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS predictions_created_at ON predictions (created_at);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        model_id TEXT,
        dataset TEXT,
        artifact_path TEXT,
        accuracy REAL DEFAULT 0,
        precision REAL DEFAULT 0,
        recall REAL DEFAULT 0,
        f1 REAL DEFAULT 0,
        data_points INTEGER DEFAULT 0,
        rejected INTEGER DEFAULT 0,
        status TEXT NOT NULL,
        error TEXT,
        trained_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS data_quality (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        line INTEGER NOT NULL,
        rule TEXT NOT NULL,
        severity TEXT NOT NULL,
        message TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS data_quality_run ON data_quality (run_id);
    `

// Store keeps the prediction history and the training log in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	database.SetMaxOpenConns(1)
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type PredictionLog struct {
	ID             int64              `json:"id"`
	RequestID      string             `json:"request_id,omitempty"`
	ModelID        string             `json:"model_id"`
	Input          map[string]float64 `json:"input"`
	PredictedLabel int                `json:"predicted_label"`
	Probability    float64            `json:"probability"`
	Cached         bool               `json:"cached"`
	CreatedAt      time.Time          `json:"created_at"`
}

func (s *Store) SavePrediction(ctx context.Context, p PredictionLog) error {
	if p.ModelID == "" {
		return errors.New("model id required")
	}
	input, err := json.Marshal(p.Input)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (request_id, model_id, input, predicted_label, probability, cached, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.RequestID, p.ModelID, string(input), p.PredictedLabel, p.Probability, p.Cached, p.CreatedAt.UTC())
	return err
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, request_id, model_id, input, predicted_label, probability, cached, created_at
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]PredictionLog, 0)
	for rows.Next() {
		var p PredictionLog
		var requestID sql.NullString
		var input string
		if err := rows.Scan(&p.ID, &requestID, &p.ModelID, &input, &p.PredictedLabel, &p.Probability, &p.Cached, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.RequestID = requestID.String
		if err := json.Unmarshal([]byte(input), &p.Input); err != nil {
			return nil, fmt.Errorf("prediction %d input: %w", p.ID, err)
		}
		logs = append(logs, p)
	}
	return logs, rows.Err()
}

type TrainingLog struct {
	RunID        string    `json:"run_id"`
	ModelID      string    `json:"model_id,omitempty"`
	Dataset      string    `json:"dataset"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Accuracy     float64   `json:"accuracy"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	F1           float64   `json:"f1"`
	DataPoints   int       `json:"data_points"`
	Rejected     int       `json:"rejected"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	TrainedAt    time.Time `json:"trained_at"`
}

func (s *Store) SaveTrainingLog(ctx context.Context, log TrainingLog) error {
	if log.RunID == "" {
		return errors.New("run id required")
	}
	if log.Status == "" {
		log.Status = "ok"
	}
	if log.TrainedAt.IsZero() {
		log.TrainedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (
            run_id, model_id, dataset, artifact_path, accuracy, precision, recall, f1,
            data_points, rejected, status, error, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.RunID, log.ModelID, log.Dataset, log.ArtifactPath, log.Accuracy, log.Precision, log.Recall, log.F1,
		log.DataPoints, log.Rejected, log.Status, log.Error, log.TrainedAt.UTC())
	return err
}

func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, model_id, dataset, artifact_path, accuracy, precision, recall, f1,
               data_points, rejected, status, error, trained_at
        FROM training_log
        ORDER BY id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		var modelID, dataset, artifact, errText sql.NullString
		if err := rows.Scan(&log.RunID, &modelID, &dataset, &artifact, &log.Accuracy, &log.Precision, &log.Recall, &log.F1,
			&log.DataPoints, &log.Rejected, &log.Status, &errText, &log.TrainedAt); err != nil {
			return nil, err
		}
		log.ModelID = modelID.String
		log.Dataset = dataset.String
		log.ArtifactPath = artifact.String
		log.Error = errText.String
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// Record persists prediction and training events; other events are ignored.
func (s *Store) Record(ctx context.Context, event monitoring.Event) error {
	switch {
	case event.Type == monitoring.EventPrediction && event.Prediction != nil:
		p := event.Prediction
		return s.SavePrediction(ctx, PredictionLog{
			RequestID:      event.RequestID,
			ModelID:        event.ModelID,
			Input:          p.Input,
			PredictedLabel: p.Class,
			Probability:    p.Probability,
			Cached:         p.Cached,
			CreatedAt:      event.Time,
		})
	case event.Type == monitoring.EventTraining && event.Training != nil:
		tr := event.Training
		status := "ok"
		if event.Error != "" {
			status = "failed"
		}
		err := s.SaveTrainingLog(ctx, TrainingLog{
			RunID:        tr.RunID,
			ModelID:      event.ModelID,
			Dataset:      tr.Dataset,
			ArtifactPath: tr.ArtifactPath,
			Accuracy:     tr.Metrics.Accuracy,
			Precision:    tr.Metrics.Precision,
			Recall:       tr.Metrics.Recall,
			F1:           tr.Metrics.F1,
			DataPoints:   tr.Rows,
			Rejected:     tr.Rejected,
			Status:       status,
			Error:        event.Error,
			TrainedAt:    event.Time,
		})
		if err != nil {
			return err
		}
		return s.SaveQualityIssues(ctx, tr.RunID, tr.Issues)
	}
	return nil
}

// SaveQualityIssues stores the rows a training run rejected, in one transaction.
func (s *Store) SaveQualityIssues(ctx context.Context, runID string, issues []dataset.QualityIssue) error {
	if len(issues) == 0 {
		return nil
	}
	if runID == "" {
		return errors.New("run id required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO data_quality (run_id, line, rule, severity, message, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, issue := range issues {
		at := issue.Time
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, runID, issue.Line, issue.Rule, issue.Severity, issue.Message, at.UTC()); err != nil {
			return fmt.Errorf("insert quality issue: %w", err)
		}
	}
	return tx.Commit()
}

// QualityIssues returns the issues recorded for runID in line order.
func (s *Store) QualityIssues(ctx context.Context, runID string) ([]dataset.QualityIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT line, rule, severity, message, created_at
        FROM data_quality
        WHERE run_id = ?
        ORDER BY line, id
    `, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := make([]dataset.QualityIssue, 0)
	for rows.Next() {
		var issue dataset.QualityIssue
		var message sql.NullString
		if err := rows.Scan(&issue.Line, &issue.Rule, &issue.Severity, &message, &issue.Time); err != nil {
			return nil, err
		}
		issue.Message = message.String
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}
