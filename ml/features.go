package ml

import (
	"fmt"
	"math"

	"swissrelocator/cities"
)

// PropertyType is the listing category the model distinguishes.
type PropertyType string

const (
	PropertyOffice     PropertyType = "office"
	PropertyCommercial PropertyType = "commercial"
)

// Rooms imputation assumes about this many square metres per office room.
const surfacePerRoom = 25.0

// Floors at or above this level count as high floors.
const highFloor = 5

// RentRequest is a validated prediction request. Optional fields are nil
// when the caller did not supply them.
type RentRequest struct {
	City         cities.City
	Surface      float64
	Latitude     *float64
	Longitude    *float64
	Rooms        *float64
	Floor        *int
	HasParking   bool
	HasLift      bool
	PropertyType PropertyType
}

// RentFeatures is the model input. Field order is the column order of the
// trained model and must match FeatureNames.
type RentFeatures struct {
	Latitude       float64
	Longitude      float64
	DistanceCentre float64
	VilleEncoded   float64

	Surface        float64
	SurfaceLog     float64
	SurfaceSquared float64

	PiecesFilled  float64
	PiecesUnknown float64

	EtageFilled   float64
	EtageUnknown  float64
	IsGroundFloor float64
	IsHighFloor   float64

	TypeBienEncoded float64

	HasParkingInt float64
	HasLiftInt    float64

	SurfaceVille    float64
	SurfaceDistance float64
}

// NumFeatures is the length of a feature vector.
const NumFeatures = 18

// Encode derives the feature vector for req. It has no error path: every
// optional field is imputed independently.
func Encode(req RentRequest) RentFeatures {
	city := req.City

	lat := city.Latitude
	if req.Latitude != nil {
		lat = *req.Latitude
	}
	lon := city.Longitude
	if req.Longitude != nil {
		lon = *req.Longitude
	}
	distance := city.DistanceKm(lat, lon)
	ville := float64(city.Code)

	surface := req.Surface

	piecesFilled := math.Max(1, surface/surfacePerRoom)
	piecesUnknown := 1.0
	if req.Rooms != nil {
		piecesFilled = *req.Rooms
		piecesUnknown = 0
	}

	etageFilled := -1.0
	etageUnknown := 1.0
	groundFloor := 0.0
	highFloorFlag := 0.0
	if req.Floor != nil {
		floor := *req.Floor
		etageFilled = float64(floor)
		etageUnknown = 0
		groundFloor = boolFeature(floor == 0)
		highFloorFlag = boolFeature(floor >= highFloor)
	}

	return RentFeatures{
		Latitude:        lat,
		Longitude:       lon,
		DistanceCentre:  distance,
		VilleEncoded:    ville,
		Surface:         surface,
		SurfaceLog:      math.Log1p(surface),
		SurfaceSquared:  surface * surface,
		PiecesFilled:    piecesFilled,
		PiecesUnknown:   piecesUnknown,
		EtageFilled:     etageFilled,
		EtageUnknown:    etageUnknown,
		IsGroundFloor:   groundFloor,
		IsHighFloor:     highFloorFlag,
		TypeBienEncoded: boolFeature(req.PropertyType == PropertyCommercial),
		HasParkingInt:   boolFeature(req.HasParking),
		HasLiftInt:      boolFeature(req.HasLift),
		SurfaceVille:    surface * ville,
		SurfaceDistance: surface * distance,
	}
}

// Vector returns the features in model column order.
func (f RentFeatures) Vector() []float64 {
	return []float64{
		f.Latitude,
		f.Longitude,
		f.DistanceCentre,
		f.VilleEncoded,
		f.Surface,
		f.SurfaceLog,
		f.SurfaceSquared,
		f.PiecesFilled,
		f.PiecesUnknown,
		f.EtageFilled,
		f.EtageUnknown,
		f.IsGroundFloor,
		f.IsHighFloor,
		f.TypeBienEncoded,
		f.HasParkingInt,
		f.HasLiftInt,
		f.SurfaceVille,
		f.SurfaceDistance,
	}
}

// FeatureNames returns the column names the model was trained with, in
// order.
func FeatureNames() []string {
	return []string{
		"latitude",
		"longitude",
		"distance_centre",
		"ville_encoded",
		"surface",
		"surface_log",
		"surface_squared",
		"pieces_filled",
		"pieces_unknown",
		"etage_filled",
		"etage_unknown",
		"is_ground_floor",
		"is_high_floor",
		"type_bien_encoded",
		"has_parking_int",
		"has_lift_int",
		"surface_ville",
		"surface_distance",
	}
}

// CheckFeatureNames reports whether names is exactly the encoder's column
// order.
func CheckFeatureNames(names []string) error {
	want := FeatureNames()
	if len(names) != len(want) {
		return fmt.Errorf("%w: got %d features, encoder produces %d", ErrFeatureMismatch, len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			return fmt.Errorf("%w: column %d is %q, encoder produces %q", ErrFeatureMismatch, i, names[i], want[i])
		}
	}
	return nil
}

func featureIndex(name string) (int, bool) {
	for i, n := range FeatureNames() {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
