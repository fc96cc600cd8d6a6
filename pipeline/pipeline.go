package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swissrelocator/cities"
	"swissrelocator/config"
)

// Pipeline runs load, clean, filter, store and export in sequence.
type Pipeline struct {
	loader   *Loader
	cleaner  *Cleaner
	store    *ListingStore
	exporter *Exporter
	config   config.PipelineConfig
	logger   *zap.Logger
}

// New builds a pipeline over store. resolver is used for the training
// export and should accept neighborhood names.
func New(cfg config.PipelineConfig, store *ListingStore, resolver *cities.Resolver, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		loader: NewLoader(LoaderConfig{
			RawDir:        cfg.RawDir,
			Transactions:  cfg.Transactions,
			PropertyTypes: cfg.PropertyTypes,
			Cities:        cfg.Cities,
			Workers:       cfg.Workers,
		}, logger),
		cleaner: NewCleaner(),
		store:   store,
		exporter: NewExporter(resolver, ExportConfig{
			MinPricePerM2: cfg.MinPricePerM2,
			MaxPricePerM2: cfg.MaxPricePerM2,
		}, logger),
		config: cfg,
		logger: logger,
	}
}

// Run executes one pass and records it in the run log, failed or not.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	run := RunSummary{StartedAt: time.Now()}

	issues, err := p.run(ctx, &run)
	run.FinishedAt = time.Now()
	if err != nil {
		run.Err = err.Error()
	}

	id, recordErr := p.store.RecordRun(context.WithoutCancel(ctx), run)
	if recordErr != nil {
		p.logger.Error("failed to record pipeline run", zap.Error(recordErr))
	} else {
		run.ID = id
		if err := p.store.SaveIssues(context.WithoutCancel(ctx), id, issues); err != nil {
			p.logger.Error("failed to record cleaning issues", zap.Error(err))
		}
	}

	if err != nil {
		return &run, err
	}
	p.logger.Info("pipeline run complete",
		zap.Int64("run_id", run.ID),
		zap.Int("loaded", run.Loaded),
		zap.Int("cleaned", run.Cleaned),
		zap.Int("rejected", run.Rejected),
		zap.Int("stored", run.Stored),
		zap.Int("exported", run.Exported),
		zap.Duration("duration", run.FinishedAt.Sub(run.StartedAt)))
	return &run, nil
}

func (p *Pipeline) run(ctx context.Context, run *RunSummary) ([]QualityIssue, error) {
	raws, _, err := p.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	run.Loaded = len(raws)

	cleaned, issues := p.cleaner.Clean(raws)
	run.Cleaned = len(cleaned)
	run.Rejected = len(issues)
	for _, issue := range issues {
		p.logger.Debug("listing rejected",
			zap.String("listing_id", issue.ListingID),
			zap.String("rule", issue.Rule),
			zap.String("message", issue.Message))
	}

	kept, report := Filter(cleaned, FilterConfig{
		MinSurface:      p.config.MinSurface,
		MaxSurface:      p.config.MaxSurface,
		OutlierQuantile: p.config.OutlierQuantile,
	})
	run.Filter = report
	p.logger.Info("listings filtered",
		zap.Int("input", report.Input),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("incomplete", report.Incomplete),
		zap.Int("surface_out_of_range", report.SurfaceOutOfRange),
		zap.Int("price_outliers", report.PriceOutliers),
		zap.Int("output", report.Output))

	stored, err := p.store.SaveListings(ctx, kept)
	if err != nil {
		return issues, fmt.Errorf("store listings: %w", err)
	}
	run.Stored = stored

	if p.config.ExportPath == "" {
		return issues, nil
	}
	exported, err := p.exporter.Export(kept, p.config.ExportPath, p.config.FeaturesPath)
	if err != nil {
		return issues, fmt.Errorf("export training matrix: %w", err)
	}
	run.Exported = exported.Rows
	return issues, nil
}
