package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoRuns is returned by LastRun on an empty run log.
var ErrNoRuns = errors.New("no pipeline runs recorded")

// ListingStore persists cleaned listings and the pipeline run log in SQLite.
type ListingStore struct {
	db *sql.DB
}

// OpenListingStore opens or creates the database at path in WAL mode.
func OpenListingStore(path string) (*ListingStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &ListingStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return s, nil
}

func (s *ListingStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS listings (
            id TEXT PRIMARY KEY,
            url TEXT,
            city TEXT NOT NULL,
            postal_code TEXT,
            address TEXT,
            latitude REAL,
            longitude REAL,
            price REAL,
            surface REAL,
            price_m2 REAL,
            rooms REAL,
            floor INTEGER,
            property_type TEXT,
            availability TEXT,
            has_parking INTEGER NOT NULL DEFAULT 0,
            has_lift INTEGER NOT NULL DEFAULT 0,
            title TEXT,
            scraped_at TEXT,
            images INTEGER NOT NULL DEFAULT 0,
            source_city TEXT,
            source_transaction TEXT,
            source_property_type TEXT,
            source_file TEXT,
            updated_at INTEGER DEFAULT (strftime('%s', 'now'))
        )`,
		`CREATE INDEX IF NOT EXISTS idx_listings_transaction ON listings(source_transaction, city)`,
		`CREATE TABLE IF NOT EXISTS cleaning_issues (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id INTEGER,
            listing_id TEXT,
            rule TEXT NOT NULL,
            message TEXT,
            created_at INTEGER DEFAULT (strftime('%s', 'now'))
        )`,
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            started_at INTEGER NOT NULL,
            finished_at INTEGER NOT NULL,
            loaded INTEGER NOT NULL,
            cleaned INTEGER NOT NULL,
            rejected INTEGER NOT NULL,
            stored INTEGER NOT NULL,
            exported INTEGER NOT NULL,
            filter_report TEXT,
            error TEXT
        )`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveListings upserts listings by id in one transaction.
func (s *ListingStore) SaveListings(ctx context.Context, listings []Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO listings
        (id, url, city, postal_code, address, latitude, longitude, price, surface, price_m2,
         rooms, floor, property_type, availability, has_parking, has_lift, title, scraped_at, images,
         source_city, source_transaction, source_property_type, source_file)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		_, err := stmt.ExecContext(ctx,
			l.ID, l.URL, l.City, l.PostalCode, l.Address,
			nullFloat(l.Latitude), nullFloat(l.Longitude),
			nullFloat(l.Price), nullFloat(l.Surface), nullFloat(l.PricePerM2),
			nullFloat(l.Rooms), nullInt(l.Floor),
			l.PropertyType, l.Availability, l.HasParking, l.HasLift,
			l.Title, l.ScrapedAt, l.Images,
			l.Source.City, l.Source.Transaction, l.Source.PropertyType, l.Source.File,
		)
		if err != nil {
			return 0, fmt.Errorf("insert listing %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(listings), nil
}

// Listings returns stored listings ordered by id. An empty transaction
// returns every listing.
func (s *ListingStore) Listings(ctx context.Context, transaction string) ([]Listing, error) {
	query := `SELECT id, url, city, postal_code, address, latitude, longitude, price, surface, price_m2,
        rooms, floor, property_type, availability, has_parking, has_lift, title, scraped_at, images,
        source_city, source_transaction, source_property_type, source_file
        FROM listings`
	var args []any
	if transaction != "" {
		query += ` WHERE source_transaction = ?`
		args = append(args, transaction)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		var url, postal, address, propertyType, availability, title, scrapedAt sql.NullString
		var srcCity, srcTransaction, srcType, srcFile sql.NullString
		var lat, lon, price, surface, m2, rooms sql.NullFloat64
		var floor sql.NullInt64

		if err := rows.Scan(&l.ID, &url, &l.City, &postal, &address, &lat, &lon, &price, &surface, &m2,
			&rooms, &floor, &propertyType, &availability, &l.HasParking, &l.HasLift, &title, &scrapedAt, &l.Images,
			&srcCity, &srcTransaction, &srcType, &srcFile); err != nil {
			return nil, err
		}

		l.URL, l.PostalCode, l.Address = url.String, postal.String, address.String
		l.PropertyType, l.Availability = propertyType.String, availability.String
		l.Title, l.ScrapedAt = title.String, scrapedAt.String
		l.Latitude, l.Longitude = floatPtr(lat), floatPtr(lon)
		l.Price, l.Surface, l.PricePerM2 = floatPtr(price), floatPtr(surface), floatPtr(m2)
		l.Rooms = floatPtr(rooms)
		if floor.Valid {
			f := int(floor.Int64)
			l.Floor = &f
		}
		l.Source = Source{City: srcCity.String, Transaction: srcTransaction.String, PropertyType: srcType.String, File: srcFile.String}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Count returns the number of stored listings.
func (s *ListingStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n)
	return n, err
}

// SaveIssues records the listings a run rejected.
func (s *ListingStore) SaveIssues(ctx context.Context, runID int64, issues []QualityIssue) error {
	if len(issues) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, issue := range issues {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cleaning_issues (run_id, listing_id, rule, message) VALUES (?, ?, ?, ?)`,
			runID, issue.ListingID, issue.Rule, issue.Message); err != nil {
			return fmt.Errorf("insert issue: %w", err)
		}
	}
	return tx.Commit()
}

// RecordRun appends a run to the log and returns its id.
func (s *ListingStore) RecordRun(ctx context.Context, run RunSummary) (int64, error) {
	report, err := json.Marshal(run.Filter)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO pipeline_runs
        (started_at, finished_at, loaded, cleaned, rejected, stored, exported, filter_report, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.Unix(), run.FinishedAt.Unix(), run.Loaded, run.Cleaned, run.Rejected,
		run.Stored, run.Exported, string(report), run.Err)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return res.LastInsertId()
}

// LastRun returns the most recent run, or ErrNoRuns.
func (s *ListingStore) LastRun(ctx context.Context) (*RunSummary, error) {
	var run RunSummary
	var started, finished int64
	var report, runErr sql.NullString

	err := s.db.QueryRowContext(ctx, `SELECT id, started_at, finished_at, loaded, cleaned, rejected,
        stored, exported, filter_report, error FROM pipeline_runs ORDER BY id DESC LIMIT 1`).
		Scan(&run.ID, &started, &finished, &run.Loaded, &run.Cleaned, &run.Rejected,
			&run.Stored, &run.Exported, &report, &runErr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}

	run.StartedAt = time.Unix(started, 0)
	run.FinishedAt = time.Unix(finished, 0)
	run.Err = runErr.String
	if report.String != "" {
		if err := json.Unmarshal([]byte(report.String), &run.Filter); err != nil {
			return nil, fmt.Errorf("decode filter report: %w", err)
		}
	}
	return &run, nil
}

// Close closes the database.
func (s *ListingStore) Close() error {
	return s.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
