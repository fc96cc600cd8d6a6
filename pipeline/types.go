// Package pipeline turns scraped ImmoScout24 listings into a cleaned SQLite
// store and a training matrix encoded with the serving feature encoder.
package pipeline

import "time"

// Transaction and property folder names of the scrape tree.
const (
	TransactionRent = "Location"
	TransactionSale = "Vente"

	PropertyOffice     = "Bureau"
	PropertyCommercial = "Commercial"
)

// Source records where a raw listing was read from.
type Source struct {
	City         string `json:"source_city"`
	Transaction  string `json:"source_transaction"`
	PropertyType string `json:"source_property_type"`
	File         string `json:"source_file"`
}

// RawListing is one scraped item as decoded from JSON.
type RawListing struct {
	Fields map[string]any
	Source Source
}

// Listing is a cleaned listing. Pointer fields are nil when the scrape did
// not carry a usable value.
type Listing struct {
	ID           string
	URL          string
	City         string
	PostalCode   string
	Address      string
	Latitude     *float64
	Longitude    *float64
	Price        *float64
	Surface      *float64
	PricePerM2   *float64
	Rooms        *float64
	Floor        *int
	PropertyType string
	Availability string
	HasParking   bool
	HasLift      bool
	Title        string
	ScrapedAt    string
	Images       int
	Source       Source
}

// RunSummary is one pipeline execution as logged in pipeline_runs.
type RunSummary struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Loaded     int
	Cleaned    int
	Rejected   int
	Stored     int
	Exported   int
	Filter     FilterReport
	Err        string
}
