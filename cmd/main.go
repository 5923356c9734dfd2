package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"fae/config"
	"fae/db"
	qhttp "fae/http"
	"fae/logging"
	"fae/monitoring"
	"fae/serving"
	"fae/training"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Look for config in root even if run from cmd/
	path := *configPath
	if path == "" {
		path = "config.yaml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = filepath.Join("..", "config.yaml")
		}
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	hub := monitoring.NewHub(logger, cfg.Server.AllowedOrigins)
	go hub.Run(ctx)
	recorders := monitoring.Recorders{monitoring.NewLogRecorder(logger), metrics, hub}

	var store *db.Store
	if cfg.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.Fatal("create database dir", zap.Error(err))
		}
		store, err = db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("open database", zap.String("path", cfg.Database.Path), zap.Error(err))
		}
		defer store.Close()
		recorders = append(recorders, store)
		logger.Info("database initialized", zap.String("path", cfg.Database.Path))
	}

	holder := serving.NewHolder(cfg.Model.ArtifactPath, logger, recorders)
	if m, err := holder.Load(ctx); err != nil {
		logger.Warn("no model loaded, predictions answer 503 until an artifact is available", zap.Error(err))
	} else {
		logger.Info("model loaded", zap.String("model_id", m.ID()), zap.String("path", holder.Path()))
	}
	if cfg.Model.Watch {
		go func() {
			if err := holder.Watch(ctx); err != nil {
				logger.Error("artifact watcher stopped", zap.Error(err))
			}
		}()
	}

	cache, err := serving.NewCache(cfg.Model.CacheSize)
	if err != nil {
		logger.Fatal("create prediction cache", zap.Error(err))
	}
	service := serving.NewService(holder, cache, recorders, metrics, logger)

	server := qhttp.NewServer(cfg.Server, qhttp.Deps{
		Service:  service,
		Store:    store,
		Metrics:  metrics,
		Hub:      hub,
		Trainer:  training.NewTrainer(logger, recorders),
		Training: cfg.Training,
		Log:      logger,
	})
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
