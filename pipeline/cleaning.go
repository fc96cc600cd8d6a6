package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CleaningRule extracts one group of fields from a raw listing. An error
// rejects the listing; an absent value is not an error.
type CleaningRule interface {
	Apply(raw RawListing, l *Listing) error
	Name() string
}

// QualityIssue is one rejected listing.
type QualityIssue struct {
	Rule      string    `json:"rule"`
	ListingID string    `json:"listing_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CleaningStats counts what Clean did over the cleaner's lifetime.
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// Cleaner applies its rules in order to every raw listing.
type Cleaner struct {
	rules []CleaningRule

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewCleaner returns a cleaner with the ImmoScout24 extraction rules.
func NewCleaner() *Cleaner {
	c := &Cleaner{stats: CleaningStats{Issues: make(map[string]int64)}}
	c.AddRule(identityRule{})
	c.AddRule(gpsRule{})
	c.AddRule(priceRule{})
	c.AddRule(surfaceRule{})
	c.AddRule(addressRule{})
	c.AddRule(roomsRule{})
	c.AddRule(floorRule{})
	c.AddRule(amenitiesRule{})
	return c
}

// AddRule appends a rule; rules run in the order added.
func (c *Cleaner) AddRule(rule CleaningRule) {
	c.rules = append(c.rules, rule)
}

// Clean extracts a Listing from every raw item. Items failing a rule are
// dropped and reported.
func (c *Cleaner) Clean(raws []RawListing) ([]Listing, []QualityIssue) {
	var cleaned []Listing
	var issues []QualityIssue

	c.statsLock.Lock()
	defer c.statsLock.Unlock()

	for _, raw := range raws {
		c.stats.TotalProcessed++

		l := Listing{Source: raw.Source}
		var failed *QualityIssue
		for _, rule := range c.rules {
			if err := rule.Apply(raw, &l); err != nil {
				failed = &QualityIssue{
					Rule:      rule.Name(),
					ListingID: stringField(raw.Fields, "id"),
					Message:   err.Error(),
					Timestamp: time.Now(),
				}
				c.stats.Issues[rule.Name()]++
				break
			}
		}
		if failed != nil {
			c.stats.Rejected++
			issues = append(issues, *failed)
			continue
		}

		if l.Price != nil && l.Surface != nil && *l.Surface > 0 {
			m2 := *l.Price / *l.Surface
			l.PricePerM2 = &m2
		}
		c.stats.Passed++
		cleaned = append(cleaned, l)
	}

	c.stats.LastClean = time.Now()
	return cleaned, issues
}

// Stats returns a snapshot of the cleaning counters.
func (c *Cleaner) Stats() CleaningStats {
	c.statsLock.RLock()
	defer c.statsLock.RUnlock()

	stats := c.stats
	stats.Issues = make(map[string]int64, len(c.stats.Issues))
	for k, v := range c.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// ============ rules ============

type identityRule struct{}

func (identityRule) Name() string { return "identity" }

func (identityRule) Apply(raw RawListing, l *Listing) error {
	l.ID = stringField(raw.Fields, "id")
	l.URL = stringField(raw.Fields, "url")
	l.Title = strings.Trim(stringField(raw.Fields, "title"), `"`)
	l.ScrapedAt = stringField(raw.Fields, "scraped_at")
	if images, ok := raw.Fields["images"].([]any); ok {
		l.Images = len(images)
	}

	features := featureMap(raw.Fields)
	l.PropertyType = raw.Source.PropertyType
	if t := stringField(features, "Type"); t != "" {
		l.PropertyType = t
	}
	l.Availability = firstString(features, "Disponibilité", "Disponible dès")
	return nil
}

// gpsRule parses "lat,lon".
type gpsRule struct{}

func (gpsRule) Name() string { return "gps" }

func (gpsRule) Apply(raw RawListing, l *Listing) error {
	gps := stringField(raw.Fields, "gps")
	if gps == "" {
		return nil
	}
	parts := strings.Split(gps, ",")
	coords := make([]*float64, 2)
	for i := 0; i < len(parts) && i < 2; i++ {
		s := strings.TrimSpace(parts[i])
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid gps %q: %w", gps, err)
		}
		coords[i] = &v
	}
	l.Latitude, l.Longitude = coords[0], coords[1]
	return nil
}

// priceRule keeps the digits of priceNet for rentals and of totalPrice,
// falling back to priceNet, for sales: "CHF 3'750.–" is 3750.
type priceRule struct{}

func (priceRule) Name() string { return "price" }

func (priceRule) Apply(raw RawListing, l *Listing) error {
	var text string
	if raw.Source.Transaction == TransactionRent {
		text = stringField(raw.Fields, "priceNet")
	} else {
		text = firstString(raw.Fields, "totalPrice", "priceNet")
	}

	digits := nonDigits.ReplaceAllString(text, "")
	if digits == "" {
		return nil
	}
	price, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", text, err)
	}
	l.Price = &price
	return nil
}

// surfaceRule takes the first number of the first surface field present.
type surfaceRule struct{}

func (surfaceRule) Name() string { return "surface" }

func (surfaceRule) Apply(raw RawListing, l *Listing) error {
	features := featureMap(raw.Fields)
	var value any
	for _, key := range []string{"Surface habitable", "Surface utile", "Surface"} {
		if v, ok := features[key]; ok && truthy(v) {
			value = v
			break
		}
	}
	if value == nil {
		if v, ok := raw.Fields["surface"]; ok && truthy(v) {
			value = v
		}
	}

	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		l.Surface = &v
		return nil
	}
	if surface, ok := firstNumber(fmt.Sprint(value)); ok {
		l.Surface = &surface
	}
	return nil
}

// addressRule splits "Avenue Rosemont 12, 1208 Genève" into postal code
// and locality. Without a match the source folder city is used.
type addressRule struct{}

var addressTail = regexp.MustCompile(`(\d{4})\s+([A-Za-zéèêàâûôîäöü\s-]+)$`)

func (addressRule) Name() string { return "address" }

func (addressRule) Apply(raw RawListing, l *Listing) error {
	l.Address = stringField(raw.Fields, "address")
	if m := addressTail.FindStringSubmatch(l.Address); m != nil {
		l.PostalCode = m[1]
		l.City = strings.TrimSpace(m[2])
		return nil
	}
	l.City = raw.Source.City
	return nil
}

type roomsRule struct{}

func (roomsRule) Name() string { return "rooms" }

func (roomsRule) Apply(raw RawListing, l *Listing) error {
	text := firstString(featureMap(raw.Fields), "Nombre de pièce(s)", "Pièces")
	if rooms, ok := firstNumber(text); ok {
		l.Rooms = &rooms
	}
	return nil
}

type floorRule struct{}

var firstInteger = regexp.MustCompile(`\d+`)

func (floorRule) Name() string { return "floor" }

func (floorRule) Apply(raw RawListing, l *Listing) error {
	text := firstString(featureMap(raw.Fields), "Etage", "Étage")
	m := firstInteger.FindString(text)
	if m == "" {
		return nil
	}
	floor, err := strconv.Atoi(m)
	if err != nil {
		return fmt.Errorf("invalid floor %q: %w", text, err)
	}
	l.Floor = &floor
	return nil
}

// amenitiesRule scans featuresSecondary for parking and lift mentions.
type amenitiesRule struct{}

func (amenitiesRule) Name() string { return "amenities" }

func (amenitiesRule) Apply(raw RawListing, l *Listing) error {
	items, _ := raw.Fields["featuresSecondary"].([]any)
	for _, item := range items {
		s := strings.ToLower(fmt.Sprint(item))
		if strings.Contains(s, "parc") {
			l.HasParking = true
		}
		if strings.Contains(s, "ascenseur") || strings.Contains(s, "lift") {
			l.HasLift = true
		}
	}
	return nil
}

// ============ field helpers ============

var (
	nonDigits    = regexp.MustCompile(`[^\d]`)
	firstDecimal = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

func featureMap(fields map[string]any) map[string]any {
	m, _ := fields["features"].(map[string]any)
	return m
}

// stringField renders scalar JSON values as text. Whole numbers print
// without a fraction so numeric ids stay stable.
func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(fields, key); s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(s string) (float64, bool) {
	m := firstDecimal.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	case bool:
		return x
	}
	return true
}
