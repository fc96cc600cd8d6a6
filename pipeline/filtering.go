package pipeline

import (
	"math"
	"sort"
)

// FilterConfig bounds the listings kept for storage.
type FilterConfig struct {
	MinSurface float64
	MaxSurface float64
	// OutlierQuantile q drops prices outside [Q(q), Q(1-q)] within each
	// transaction type.
	OutlierQuantile float64
}

// FilterReport counts the rows dropped at each step.
type FilterReport struct {
	Input             int `json:"input"`
	Duplicates        int `json:"duplicates"`
	Incomplete        int `json:"incomplete"`
	SurfaceOutOfRange int `json:"surface_out_of_range"`
	PriceOutliers     int `json:"price_outliers"`
	Output            int `json:"output"`
}

// Filter deduplicates listings by id, drops incomplete rows and surface
// outliers, then trims price outliers per transaction type. Output is
// grouped by transaction in first-seen order.
func Filter(listings []Listing, cfg FilterConfig) ([]Listing, FilterReport) {
	report := FilterReport{Input: len(listings)}

	seen := make(map[string]bool, len(listings))
	var complete []Listing
	for _, l := range listings {
		if seen[l.ID] {
			report.Duplicates++
			continue
		}
		seen[l.ID] = true

		if l.Price == nil || l.Surface == nil || l.City == "" || l.Latitude == nil || l.Longitude == nil {
			report.Incomplete++
			continue
		}
		if *l.Surface < cfg.MinSurface || *l.Surface > cfg.MaxSurface {
			report.SurfaceOutOfRange++
			continue
		}
		complete = append(complete, l)
	}

	var order []string
	groups := make(map[string][]Listing)
	for _, l := range complete {
		t := l.Source.Transaction
		if _, ok := groups[t]; !ok {
			order = append(order, t)
		}
		groups[t] = append(groups[t], l)
	}

	var out []Listing
	for _, t := range order {
		group := groups[t]
		prices := make([]float64, len(group))
		for i, l := range group {
			prices[i] = *l.Price
		}
		low := Quantile(prices, cfg.OutlierQuantile)
		high := Quantile(prices, 1-cfg.OutlierQuantile)

		for _, l := range group {
			if *l.Price < low || *l.Price > high {
				report.PriceOutliers++
				continue
			}
			out = append(out, l)
		}
	}

	report.Output = len(out)
	return out, report
}

// Quantile returns the q-th quantile of values with linear interpolation
// between closest ranks. It returns NaN for an empty slice.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q = math.Min(math.Max(q, 0), 1)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
