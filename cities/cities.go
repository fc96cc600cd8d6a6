// Package cities holds the reference table of servable Swiss cities and
// resolves free-form city names onto it.
package cities

import (
	"math"
	"sort"
)

// Degrees to kilometres at Swiss latitudes. Not geodesic; the model was
// trained with exactly these factors.
const (
	kmPerDegreeLat = 111.0
	kmPerDegreeLon = 85.0
)

// City is one row of the reference table.
type City struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Code is the categorical identity the model was trained with.
	Code int `json:"code"`
}

// Canonical city names.
const (
	Basel    = "Basel"
	Geneve   = "Geneve"
	Lausanne = "Lausanne"
	Zurich   = "Zurich"
)

// Code 1 was the training encoder's "Centre" label and is not servable.
var reference = map[string]City{
	Basel:    {Name: Basel, Latitude: 47.5596, Longitude: 7.5886, Code: 0},
	Geneve:   {Name: Geneve, Latitude: 46.2044, Longitude: 6.1432, Code: 2},
	Lausanne: {Name: Lausanne, Latitude: 46.5197, Longitude: 6.6323, Code: 3},
	Zurich:   {Name: Zurich, Latitude: 47.3769, Longitude: 8.5417, Code: 4},
}

// Lookup returns the reference row for a canonical name.
func Lookup(name string) (City, bool) {
	c, ok := reference[name]
	return c, ok
}

// Supported returns the reference table ordered by model code.
func Supported() []City {
	list := make([]City, 0, len(reference))
	for _, c := range reference {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list
}

// Names returns the canonical names ordered by model code.
func Names() []string {
	list := Supported()
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Name
	}
	return names
}

// DistanceKm approximates the distance in kilometres between (lat, lon) and
// the city center.
func (c City) DistanceKm(lat, lon float64) float64 {
	dLat := (lat - c.Latitude) * kmPerDegreeLat
	dLon := (lon - c.Longitude) * kmPerDegreeLon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}
