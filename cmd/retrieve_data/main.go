package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"fae/config"
	"fae/dataset"
	"fae/logging"
	"fae/monitoring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	source := flag.String("source", "", "CSV path or http(s) URL")
	dest := flag.String("dest", "", "directory receiving data_fire.csv")
	encoding := flag.String("encoding", "", "source character encoding")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	rc := cfg.Data
	if *source != "" {
		rc.Source = *source
	}
	if *dest != "" {
		rc.DestDir = *dest
	}
	if *encoding != "" {
		rc.Encoding = *encoding
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer closeLog()
	recorder := monitoring.Recorders{monitoring.NewLogRecorder(logger)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	event := monitoring.Event{Type: monitoring.EventDataRetrieved, Detail: rc.Source}
	message, err := dataset.Retrieve(ctx, rc)
	if err != nil {
		event.Error = err.Error()
		_ = recorder.Record(ctx, event)
		logger.Fatal("failed to retrieve data", zap.String("source", rc.Source), zap.Error(err))
	}
	_ = recorder.Record(ctx, event)
	fmt.Println(message)
}
