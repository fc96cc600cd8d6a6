package ml

import (
	"math"
	"testing"

	"swissrelocator/cities"
)

func mustCity(t *testing.T, name string) cities.City {
	t.Helper()
	c, ok := cities.Lookup(name)
	if !ok {
		t.Fatalf("city %s not in reference table", name)
	}
	return c
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestEncodeVectorMatchesFeatureNames(t *testing.T) {
	names := FeatureNames()
	if len(names) != NumFeatures {
		t.Fatalf("expected %d names, got %d", NumFeatures, len(names))
	}
	if err := CheckFeatureNames(names); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, city := range cities.Supported() {
		for _, surface := range []float64{5.01, 12, 25, 50, 99.5, 400, 2500, 9999.99} {
			req := RentRequest{City: city, Surface: surface}
			vector := Encode(req).Vector()
			if len(vector) != len(names) {
				t.Fatalf("%s/%v: vector has %d values, want %d", city.Name, surface, len(vector), len(names))
			}
			for i, v := range vector {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("%s/%v: %s is %v", city.Name, surface, names[i], v)
				}
			}
		}
	}
}

func TestEncodeZurichDefaults(t *testing.T) {
	f := Encode(RentRequest{City: mustCity(t, cities.Zurich), Surface: 50, PropertyType: PropertyOffice})

	if f.VilleEncoded != 4 {
		t.Fatalf("expected ville_encoded 4, got %v", f.VilleEncoded)
	}
	if f.DistanceCentre != 0 {
		t.Fatalf("expected distance 0, got %v", f.DistanceCentre)
	}
	if f.Latitude != 47.3769 || f.Longitude != 8.5417 {
		t.Fatalf("expected city center, got %v,%v", f.Latitude, f.Longitude)
	}
	if f.SurfaceLog != math.Log1p(50) {
		t.Fatalf("expected surface_log %v, got %v", math.Log1p(50), f.SurfaceLog)
	}
	if f.SurfaceSquared != 2500 {
		t.Fatalf("expected surface_squared 2500, got %v", f.SurfaceSquared)
	}
	if f.PiecesFilled != 2 {
		t.Fatalf("expected imputed 2 rooms, got %v", f.PiecesFilled)
	}
	if f.SurfaceVille != 200 || f.SurfaceDistance != 0 {
		t.Fatalf("unexpected interactions: %v %v", f.SurfaceVille, f.SurfaceDistance)
	}
	if f.TypeBienEncoded != 0 || f.HasParkingInt != 0 || f.HasLiftInt != 0 {
		t.Fatalf("unexpected flags: %+v", f)
	}
}

func TestEncodeImputation(t *testing.T) {
	f := Encode(RentRequest{City: mustCity(t, cities.Geneve), Surface: 80})

	want := map[string]float64{
		"pieces_unknown":  1,
		"etage_unknown":   1,
		"etage_filled":    -1,
		"is_ground_floor": 0,
		"is_high_floor":   0,
		"pieces_filled":   80.0 / 25,
	}
	got := make(map[string]float64)
	for i, name := range FeatureNames() {
		got[name] = f.Vector()[i]
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s: expected %v, got %v", name, v, got[name])
		}
	}
}

func TestEncodeRoomsFloorAtOne(t *testing.T) {
	f := Encode(RentRequest{City: mustCity(t, cities.Basel), Surface: 10})
	if f.PiecesFilled != 1 {
		t.Fatalf("expected imputed rooms clamped to 1, got %v", f.PiecesFilled)
	}
}

func TestEncodeFloorBoundaries(t *testing.T) {
	tests := []struct {
		floor  int
		ground float64
		high   float64
	}{
		{-1, 0, 0},
		{0, 1, 0},
		{4, 0, 0},
		{5, 0, 1},
		{12, 0, 1},
	}
	city := mustCity(t, cities.Lausanne)
	for _, tt := range tests {
		f := Encode(RentRequest{City: city, Surface: 100, Floor: intPtr(tt.floor)})
		if f.IsGroundFloor != tt.ground || f.IsHighFloor != tt.high {
			t.Errorf("floor %d: got ground=%v high=%v, want %v %v", tt.floor, f.IsGroundFloor, f.IsHighFloor, tt.ground, tt.high)
		}
		if f.EtageUnknown != 0 || f.EtageFilled != float64(tt.floor) {
			t.Errorf("floor %d: got etage_filled=%v unknown=%v", tt.floor, f.EtageFilled, f.EtageUnknown)
		}
	}
}

func TestEncodeIndependentImputation(t *testing.T) {
	city := mustCity(t, cities.Geneve)
	f := Encode(RentRequest{City: city, Surface: 100, Floor: intPtr(3)})
	if f.PiecesUnknown != 1 || f.EtageUnknown != 0 {
		t.Fatalf("floor without rooms: %+v", f)
	}

	f = Encode(RentRequest{City: city, Surface: 100, Rooms: floatPtr(3.5)})
	if f.PiecesUnknown != 0 || f.PiecesFilled != 3.5 || f.EtageUnknown != 1 {
		t.Fatalf("rooms without floor: %+v", f)
	}
}

func TestEncodeCoordinates(t *testing.T) {
	city := mustCity(t, cities.Geneve)

	// latitude only: longitude falls back to the center
	f := Encode(RentRequest{City: city, Surface: 100, Latitude: floatPtr(46.218889)})
	if f.Longitude != city.Longitude {
		t.Fatalf("expected center longitude, got %v", f.Longitude)
	}
	wantDistance := math.Abs(46.218889-city.Latitude) * 111
	if math.Abs(f.DistanceCentre-wantDistance) > 1e-9 {
		t.Fatalf("expected distance %v, got %v", wantDistance, f.DistanceCentre)
	}
	if math.Abs(f.SurfaceDistance-100*wantDistance) > 1e-9 {
		t.Fatalf("unexpected surface_distance %v", f.SurfaceDistance)
	}
}

func TestEncodeFlags(t *testing.T) {
	f := Encode(RentRequest{
		City:         mustCity(t, cities.Zurich),
		Surface:      200,
		HasParking:   true,
		HasLift:      true,
		PropertyType: PropertyCommercial,
	})
	if f.TypeBienEncoded != 1 || f.HasParkingInt != 1 || f.HasLiftInt != 1 {
		t.Fatalf("unexpected flags: %+v", f)
	}
}

func TestCheckFeatureNamesMismatch(t *testing.T) {
	names := FeatureNames()
	names[3], names[4] = names[4], names[3]
	if err := CheckFeatureNames(names); err == nil {
		t.Fatal("expected error for swapped columns")
	}
	if err := CheckFeatureNames(FeatureNames()[:17]); err == nil {
		t.Fatal("expected error for short list")
	}
}
