package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"swissrelocator/cities"
	"swissrelocator/ml"
)

// ExportConfig bounds the rental listings kept for training.
type ExportConfig struct {
	MinPricePerM2 float64
	MaxPricePerM2 float64
}

// ExportReport counts the rows dropped on the way to the training matrix.
type ExportReport struct {
	Input        int `json:"input"`
	NotRental    int `json:"not_rental"`
	Incomplete   int `json:"incomplete"`
	UnknownCity  int `json:"unknown_city"`
	PricePerM2   int `json:"price_per_m2"`
	NoPostalCode int `json:"no_postal_code"`
	Rows         int `json:"rows"`
}

// TrainingRow is one encoded listing and its monthly rent.
type TrainingRow struct {
	ListingID string
	Features  ml.RentFeatures
	Price     float64
}

// Exporter builds the training matrix with the encoder used at serving
// time, so both sides derive features identically.
type Exporter struct {
	resolver *cities.Resolver
	config   ExportConfig
	logger   *zap.Logger
}

// NewExporter takes a resolver that should accept neighborhood names.
func NewExporter(resolver *cities.Resolver, config ExportConfig, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{resolver: resolver, config: config, logger: logger}
}

// Rows selects rental listings in a supported city with a plausible price
// per m2 and a postal code, and encodes them.
func (e *Exporter) Rows(listings []Listing) ([]TrainingRow, ExportReport) {
	report := ExportReport{Input: len(listings)}
	var rows []TrainingRow

	for _, l := range listings {
		if l.Source.Transaction != TransactionRent {
			report.NotRental++
			continue
		}
		if l.Price == nil || l.Surface == nil {
			report.Incomplete++
			continue
		}
		city, ok := e.resolver.Resolve(l.City)
		if !ok {
			report.UnknownCity++
			continue
		}
		if l.PricePerM2 == nil || *l.PricePerM2 < e.config.MinPricePerM2 || *l.PricePerM2 > e.config.MaxPricePerM2 {
			report.PricePerM2++
			continue
		}
		if l.PostalCode == "" {
			report.NoPostalCode++
			continue
		}

		rows = append(rows, TrainingRow{
			ListingID: l.ID,
			Features:  ml.Encode(rentRequest(l, city)),
			Price:     *l.Price,
		})
	}

	report.Rows = len(rows)
	return rows, report
}

// Export writes the training CSV to csvPath and the feature list to
// featuresPath.
func (e *Exporter) Export(listings []Listing, csvPath, featuresPath string) (ExportReport, error) {
	rows, report := e.Rows(listings)

	if err := os.MkdirAll(filepath.Dir(csvPath), 0o755); err != nil {
		return report, fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(csvPath)
	if err != nil {
		return report, fmt.Errorf("create %s: %w", csvPath, err)
	}
	defer f.Close()

	if err := WriteTrainingCSV(f, rows); err != nil {
		return report, err
	}
	if err := f.Close(); err != nil {
		return report, fmt.Errorf("close %s: %w", csvPath, err)
	}

	if featuresPath != "" {
		if err := ml.WriteFeatureNames(featuresPath); err != nil {
			return report, fmt.Errorf("write feature names: %w", err)
		}
	}

	e.logger.Info("training matrix exported",
		zap.String("path", csvPath),
		zap.Int("rows", report.Rows),
		zap.Int("not_rental", report.NotRental),
		zap.Int("incomplete", report.Incomplete),
		zap.Int("unknown_city", report.UnknownCity),
		zap.Int("price_per_m2", report.PricePerM2),
		zap.Int("no_postal_code", report.NoPostalCode))
	return report, nil
}

// WriteTrainingCSV writes a header of the feature names plus "price", then
// one row per listing in feature order.
func WriteTrainingCSV(w io.Writer, rows []TrainingRow) error {
	cw := csv.NewWriter(w)
	header := append(ml.FeatureNames(), "price")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i, v := range row.Features.Vector() {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(record)-1] = strconv.FormatFloat(row.Price, 'g', -1, 64)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", row.ListingID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func rentRequest(l Listing, city cities.City) ml.RentRequest {
	propertyType := ml.PropertyOffice
	if l.Source.PropertyType == PropertyCommercial {
		propertyType = ml.PropertyCommercial
	}
	return ml.RentRequest{
		City:         city,
		Surface:      *l.Surface,
		Latitude:     l.Latitude,
		Longitude:    l.Longitude,
		Rooms:        l.Rooms,
		Floor:        l.Floor,
		HasParking:   l.HasParking,
		HasLift:      l.HasLift,
		PropertyType: propertyType,
	}
}
