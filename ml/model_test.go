package ml

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// Two stumps on surface (column 4) and is_high_floor (column 12).
const testXGBoostDump = `{
  "base_score": 1000,
  "trees": [
    {"nodeid": 0, "depth": 0, "split": "surface", "split_condition": 100, "yes": 1, "no": 2, "missing": 1,
     "children": [{"nodeid": 1, "leaf": 500}, {"nodeid": 2, "leaf": 2500}]},
    {"nodeid": 0, "depth": 0, "split": "f12", "split_condition": 0.5, "yes": 1, "no": 2, "missing": 2,
     "children": [{"nodeid": 2, "leaf": 300}, {"nodeid": 1, "leaf": -100}]}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func vectorWith(values map[int]float64) []float64 {
	v := make([]float64, NumFeatures)
	for i, x := range values {
		v[i] = x
	}
	return v
}

func TestXGBoostPredict(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.json", testXGBoostDump)
	model, err := LoadModel(ModelXGBoost, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		surface float64
		high    float64
		want    float64
	}{
		{"small low floor", 50, 0, 1000 + 500 - 100},
		{"large high floor", 250, 1, 1000 + 2500 + 300},
		// strict less-than: the threshold itself goes to "no"
		{"at threshold", 100, 0, 1000 + 2500 - 100},
		{"missing surface", math.NaN(), 1, 1000 + 500 + 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := model.Predict(vectorWith(map[int]float64{4: tt.surface, 12: tt.high}))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestXGBoostBareArrayUsesConfiguredBaseScore(t *testing.T) {
	dump := `[{"nodeid": 0, "leaf": 42}]`
	path := writeFile(t, t.TempDir(), "model.json", dump)

	model, err := LoadModel(ModelXGBoost, path, WithBaseScore(3000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := model.Predict(make([]float64, NumFeatures))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3042 {
		t.Fatalf("expected 3042, got %v", got)
	}
}

func TestXGBoostRejectsUnknownSplit(t *testing.T) {
	dump := `[{"nodeid": 0, "split": "prix_m2", "split_condition": 30, "yes": 1, "no": 2, "missing": 1,
	  "children": [{"nodeid": 1, "leaf": 1}, {"nodeid": 2, "leaf": 2}]}]`
	path := writeFile(t, t.TempDir(), "model.json", dump)
	if _, err := LoadModel(ModelXGBoost, path); err == nil {
		t.Fatal("expected error for split on unknown feature")
	}
}

func TestXGBoostRejectsDanglingChild(t *testing.T) {
	dump := `[{"nodeid": 0, "split": "surface", "split_condition": 30, "yes": 1, "no": 7, "missing": 1,
	  "children": [{"nodeid": 1, "leaf": 1}, {"nodeid": 2, "leaf": 2}]}]`
	path := writeFile(t, t.TempDir(), "model.json", dump)
	if _, err := LoadModel(ModelXGBoost, path); err == nil {
		t.Fatal("expected error for dangling child id")
	}
}

func TestRegressionTreePredict(t *testing.T) {
	nodes := `[
	  {"feature_idx": 4, "threshold": 80, "left_child": 1, "right_child": 2, "is_leaf": false},
	  {"feature_idx": -1, "left_child": -1, "right_child": -1, "value": 1800, "is_leaf": true},
	  {"feature_idx": -1, "left_child": -1, "right_child": -1, "value": 5200, "is_leaf": true}
	]`
	path := writeFile(t, t.TempDir(), "tree.json", nodes)
	model, err := LoadModel(ModelDecisionTree, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := model.Predict(vectorWith(map[int]float64{4: 80}))
	if err != nil || got != 1800 {
		t.Fatalf("expected 1800, got %v (%v)", got, err)
	}
	got, err = model.Predict(vectorWith(map[int]float64{4: 81}))
	if err != nil || got != 5200 {
		t.Fatalf("expected 5200, got %v (%v)", got, err)
	}
}

func TestLinearModelRequiresAllCoefficients(t *testing.T) {
	path := writeFile(t, t.TempDir(), "linear.json", `{"intercept": 10, "coefficients": [1, 2]}`)
	if _, err := LoadModel(ModelLinear, path); err == nil {
		t.Fatal("expected error for short coefficient list")
	}
}

func TestLoadModelErrors(t *testing.T) {
	if _, err := LoadModel("random_forest", "whatever"); !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("expected ErrUnsupportedModel, got %v", err)
	}
	_, err := LoadModel(ModelXGBoost, filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestStandardScalerTransform(t *testing.T) {
	s := &StandardScaler{Mean: []float64{10, 0}, Scale: []float64{2, 0}}
	got, err := s.Transform([]float64{14, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 2 || got[1] != 3 {
		t.Fatalf("unexpected result %v", got)
	}
	if _, err := s.Transform([]float64{1}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
