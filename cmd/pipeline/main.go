package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"swissrelocator/cities"
	"swissrelocator/config"
	"swissrelocator/logging"
	"swissrelocator/pipeline"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	rawDir := flag.String("raw_dir", "", "override pipeline.raw_dir")
	dbPath := flag.String("db", "", "override pipeline.db_path")
	exportPath := flag.String("export", "", "override pipeline.export_path")
	noExport := flag.Bool("no_export", false, "skip the training matrix export")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *rawDir != "" {
		cfg.Pipeline.RawDir = *rawDir
	}
	if *dbPath != "" {
		cfg.Pipeline.DBPath = *dbPath
	}
	if *exportPath != "" {
		cfg.Pipeline.ExportPath = *exportPath
	}
	if *noExport {
		cfg.Pipeline.ExportPath = ""
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	store, err := pipeline.OpenListingStore(cfg.Pipeline.DBPath)
	if err != nil {
		logger.Fatal("failed to open listing store", zap.Error(err))
	}
	defer store.Close()

	resolver, err := cities.NewResolver(cities.WithNeighborhoods())
	if err != nil {
		logger.Fatal("failed to build city resolver", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := pipeline.New(cfg.Pipeline, store, resolver, logger).Run(ctx)
	if err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		store.Close()
		os.Exit(1)
	}

	fmt.Printf("run %d: loaded=%d cleaned=%d rejected=%d stored=%d exported=%d\n",
		run.ID, run.Loaded, run.Cleaned, run.Rejected, run.Stored, run.Exported)
}
