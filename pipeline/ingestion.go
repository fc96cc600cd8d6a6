package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LoaderConfig selects the part of the scrape tree to read.
type LoaderConfig struct {
	RawDir        string
	Transactions  []string
	PropertyTypes []string
	Cities        []string
	Workers       int
}

// Loader reads raw/<transaction>/<property type>/<city>/*.json.
type Loader struct {
	config LoaderConfig
	logger *zap.Logger
}

// IngestionStats summarizes one Load call.
type IngestionStats struct {
	Folders      int `json:"folders"`
	Files        int `json:"files"`
	FailedFiles  int `json:"failed_files"`
	TotalRecords int `json:"total_records"`
}

// NewLoader returns a Loader. Workers defaults to 4.
func NewLoader(config LoaderConfig, logger *zap.Logger) *Loader {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if len(config.Transactions) == 0 {
		config.Transactions = []string{TransactionRent, TransactionSale}
	}
	if len(config.PropertyTypes) == 0 {
		config.PropertyTypes = []string{PropertyOffice, PropertyCommercial}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{config: config, logger: logger}
}

type sourceFile struct {
	path   string
	source Source
}

// Load reads every JSON file of the configured folders in parallel. Missing
// folders and unreadable or malformed files are logged and skipped; only
// context cancellation fails the load. Records come back in folder then
// file name order.
func (l *Loader) Load(ctx context.Context) ([]RawListing, IngestionStats, error) {
	var stats IngestionStats
	files, err := l.discover(&stats)
	if err != nil {
		return nil, stats, err
	}

	results := make([][]RawListing, len(files))
	failed := make([]bool, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			items, err := readListingFile(f.path, f.source)
			if err != nil {
				l.logger.Warn("skipping listing file", zap.String("file", f.path), zap.Error(err))
				failed[i] = true
				return nil
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	var all []RawListing
	for i, items := range results {
		if failed[i] {
			stats.FailedFiles++
		}
		all = append(all, items...)
	}
	stats.TotalRecords = len(all)

	l.logger.Info("listings loaded",
		zap.Int("folders", stats.Folders),
		zap.Int("files", stats.Files),
		zap.Int("failed_files", stats.FailedFiles),
		zap.Int("records", stats.TotalRecords))
	return all, stats, nil
}

func (l *Loader) discover(stats *IngestionStats) ([]sourceFile, error) {
	var files []sourceFile
	for _, transaction := range l.config.Transactions {
		for _, propertyType := range l.config.PropertyTypes {
			for _, city := range l.config.Cities {
				dir := filepath.Join(l.config.RawDir, transaction, propertyType, city)
				if _, err := os.Stat(dir); err != nil {
					l.logger.Debug("folder not found", zap.String("dir", dir))
					continue
				}
				stats.Folders++

				matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
				if err != nil {
					return nil, fmt.Errorf("list %s: %w", dir, err)
				}
				sort.Strings(matches)
				for _, path := range matches {
					files = append(files, sourceFile{
						path: path,
						source: Source{
							City:         city,
							Transaction:  transaction,
							PropertyType: propertyType,
							File:         filepath.Base(path),
						},
					})
				}
			}
		}
	}
	stats.Files = len(files)
	return files, nil
}

// readListingFile accepts either an array of objects or a single object.
func readListingFile(path string, source Source) ([]RawListing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var items []RawListing
	switch v := decoded.(type) {
	case []any:
		for _, item := range v {
			if fields, ok := item.(map[string]any); ok {
				items = append(items, RawListing{Fields: fields, Source: source})
			}
		}
	case map[string]any:
		items = append(items, RawListing{Fields: v, Source: source})
	default:
		return nil, fmt.Errorf("unexpected top-level JSON %T", decoded)
	}
	return items, nil
}
