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

	"swissrelocator/cities"
	"swissrelocator/config"
	rhttp "swissrelocator/http"
	"swissrelocator/logging"
	"swissrelocator/ml"
	"swissrelocator/monitoring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	// Look for config in root even if run from cmd/
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		if alt := filepath.Join("..", *configPath); fileExists(alt) {
			*configPath = alt
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	resolver, err := cities.NewResolver()
	if err != nil {
		logger.Fatal("failed to build city resolver", zap.Error(err))
	}

	paths := ml.DefaultArtifactPaths(cfg.ML.ArtifactDir)
	artifacts, err := ml.LoadArtifacts(paths, cfg.ML.ModelType, logger, ml.WithBaseScore(cfg.ML.BaseScore))
	if err != nil {
		logger.Fatal("refusing to serve mismatched model artifacts", zap.Error(err))
	}

	predictor := ml.NewPredictor(artifacts, predictorConfig(cfg.ML), logger)
	health := predictor.Health()
	if !predictor.Ready() {
		logger.Warn("starting in degraded mode",
			zap.Bool("model_loaded", health.ModelLoaded),
			zap.Bool("scaler_loaded", health.ScalerLoaded),
			zap.Bool("features_loaded", health.FeaturesLoaded))
	}

	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics()
		metrics.SetArtifactsLoaded(health.ModelLoaded, health.ScalerLoaded, health.FeaturesLoaded)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.ML.WatchArtifacts {
		startArtifactWatcher(ctx, cfg.ML.ArtifactDir, paths, metrics, logger)
	}

	server := rhttp.NewServer(*cfg, predictor, resolver, metrics, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}

func predictorConfig(cfg config.MLConfig) ml.PredictorConfig {
	return ml.PredictorConfig{
		MAE:         cfg.MAE,
		EURRate:     cfg.EURRate,
		ScaleInputs: cfg.ScaleInputs,
		Info: ml.ModelInfo{
			ModelType:    cfg.ModelLabel,
			R2Score:      cfg.R2Score,
			TrainingData: cfg.TrainingData,
			LastTrained:  cfg.LastTrained,
		},
	}
}

func startArtifactWatcher(ctx context.Context, dir string, paths ml.ArtifactPaths, metrics *monitoring.Metrics, logger *zap.Logger) {
	onChange := func(name string) {
		if metrics != nil {
			metrics.ArtifactChanged(name)
		}
	}
	watcher, err := monitoring.NewArtifactWatcher(dir, []string{paths.Model, paths.Scaler, paths.Features}, logger, onChange)
	if err != nil {
		logger.Warn("artifact watcher disabled", zap.Error(err))
		return
	}
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("artifact watcher stopped", zap.Error(err))
		}
	}()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
