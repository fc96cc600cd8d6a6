package ml

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestLoadArtifactsMissingDirectory(t *testing.T) {
	paths := DefaultArtifactPaths(t.TempDir())
	artifacts, err := LoadArtifacts(paths, ModelXGBoost, zap.NewNop())
	if err != nil {
		t.Fatalf("missing artifacts must not be fatal: %v", err)
	}
	if artifacts.Model != nil || artifacts.Scaler != nil || artifacts.FeatureNames != nil {
		t.Fatalf("expected empty artifacts, got %+v", artifacts)
	}

	p := NewPredictor(artifacts, testConfig(), zap.NewNop())
	h := p.Health()
	if h.ModelLoaded || h.ScalerLoaded || h.FeaturesLoaded {
		t.Fatalf("expected nothing loaded, got %+v", h)
	}
}

func TestLoadArtifactsComplete(t *testing.T) {
	dir := t.TempDir()
	paths := DefaultArtifactPaths(dir)
	writeFile(t, dir, ModelFile, testXGBoostDump)
	if err := WriteFeatureNames(paths.Features); err != nil {
		t.Fatalf("write features: %v", err)
	}

	artifacts, err := LoadArtifacts(paths, ModelXGBoost, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifacts.Model == nil || len(artifacts.FeatureNames) != NumFeatures {
		t.Fatalf("expected model and features, got %+v", artifacts)
	}
	if artifacts.Scaler != nil {
		t.Fatal("scaler was not written")
	}
	if !NewPredictor(artifacts, testConfig(), zap.NewNop()).Ready() {
		t.Fatal("expected ready predictor")
	}
}

func TestLoadArtifactsFeatureMismatchIsFatal(t *testing.T) {
	dir := t.TempDir()
	names := FeatureNames()
	// the old standalone script's schema carried prix_m2_distance
	names[len(names)-1] = "prix_m2_distance"
	writeFile(t, dir, FeaturesFile, strings.Join(names, "\n"))

	_, err := LoadArtifacts(DefaultArtifactPaths(dir), ModelXGBoost, zap.NewNop())
	if !errors.Is(err, ErrFeatureMismatch) {
		t.Fatalf("expected ErrFeatureMismatch, got %v", err)
	}
}

func TestLoadArtifactsCorruptModelDegrades(t *testing.T) {
	dir := t.TempDir()
	paths := DefaultArtifactPaths(dir)
	writeFile(t, dir, ModelFile, "{not json")
	writeFile(t, dir, ScalerFile, `{"mean": [1], "scale": [1]}`)
	if err := WriteFeatureNames(paths.Features); err != nil {
		t.Fatalf("write features: %v", err)
	}

	artifacts, err := LoadArtifacts(paths, ModelXGBoost, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifacts.Model != nil || artifacts.Scaler != nil {
		t.Fatalf("expected corrupt model and scaler to be skipped, got %+v", artifacts)
	}
	if artifacts.FeatureNames == nil {
		t.Fatal("expected feature list to load")
	}
}

func TestReadFeatureNamesIgnoresBlankLines(t *testing.T) {
	path := writeFile(t, t.TempDir(), "f.txt", "latitude\n\n longitude \n")
	names, err := ReadFeatureNames(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[1] != "longitude" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestShippedFeatureListMatchesEncoder(t *testing.T) {
	names, err := ReadFeatureNames("../ml_models/immo_ch_features.txt")
	if err != nil {
		t.Fatalf("reading shipped feature list: %v", err)
	}
	if err := CheckFeatureNames(names); err != nil {
		t.Fatalf("shipped feature list drifted from the encoder: %v", err)
	}
}
