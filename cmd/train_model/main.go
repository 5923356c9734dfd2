package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"fae/config"
	"fae/db"
	"fae/logging"
	"fae/monitoring"
	"fae/training"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	dataPath := flag.String("data", "", "cleaned dataset CSV")
	modelPath := flag.String("model_path", "", "model artifact output path")
	testRatio := flag.Float64("test_ratio", 0, "held-out ratio")
	seed := flag.Int64("seed", 0, "split seed")
	kind := flag.String("classifier", "", "logistic_regression or decision_tree")
	c := flag.Float64("c", 0, "inverse regularisation strength")
	classWeight := flag.String("class_weight", "", "balanced or none")
	maxDepth := flag.Int("max_depth", 0, "max tree depth")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tc := cfg.Training
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			tc.Dataset = *dataPath
		case "model_path":
			tc.ArtifactPath = *modelPath
		case "test_ratio":
			tc.TestRatio = *testRatio
		case "seed":
			tc.Seed = *seed
		case "classifier":
			tc.Classifier.Kind = *kind
		case "c":
			tc.Classifier.C = *c
		case "class_weight":
			tc.Classifier.ClassWeight = *classWeight
		case "max_depth":
			tc.Classifier.MaxDepth = *maxDepth
		}
	})

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer closeLog()

	recorders := monitoring.Recorders{monitoring.NewLogRecorder(logger)}
	if cfg.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.Fatal("create database dir", zap.Error(err))
		}
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		defer store.Close()
		recorders = append(recorders, store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := training.NewTrainer(logger, recorders).Run(ctx, tc)
	if err != nil {
		logger.Fatal("failed to train model", zap.Error(err))
	}

	fmt.Printf("accuracy=%.2f precision=%.2f recall=%.2f f1=%.2f\n",
		report.Metrics.Accuracy, report.Metrics.Precision, report.Metrics.Recall, report.Metrics.F1)
	fmt.Printf("model %s saved to %s\n", report.Artifact.ID, report.Path)
}
