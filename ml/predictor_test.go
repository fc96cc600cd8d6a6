package ml

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"swissrelocator/cities"
)

type fakeRegressor struct {
	value float64
	err   error
	panic bool
}

func (f *fakeRegressor) Predict(features []float64) (float64, error) {
	if f.panic {
		var m map[string]int
		m["boom"] = 1
	}
	return f.value, f.err
}

func testConfig() PredictorConfig {
	return PredictorConfig{
		MAE:     1425,
		EURRate: 0.92,
		Info:    ModelInfo{ModelType: "XGBoost Regressor", R2Score: 0.763},
	}
}

func readyArtifacts(model Regressor) *Artifacts {
	return &Artifacts{Model: model, FeatureNames: FeatureNames()}
}

func zurichRequest(t *testing.T) RentRequest {
	return RentRequest{City: mustCity(t, cities.Zurich), Surface: 50}
}

func TestPredictorEstimate(t *testing.T) {
	p := NewPredictor(readyArtifacts(&fakeRegressor{value: 3000}), testConfig(), zap.NewNop())

	result, err := p.Estimate(context.Background(), zurichRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RentCHF != 3000 {
		t.Fatalf("expected 3000, got %v", result.RentCHF)
	}
	if math.Abs(result.RentEUR-2760) > 1e-9 {
		t.Fatalf("expected 2760 EUR, got %v", result.RentEUR)
	}
	if result.PricePerM2CHF != 60 {
		t.Fatalf("expected 60 CHF/m2, got %v", result.PricePerM2CHF)
	}
	if result.Range.Min != 1575 || result.Range.Max != 4425 || result.Range.MAE != 1425 {
		t.Fatalf("unexpected range %+v", result.Range)
	}
	if result.City.Name != cities.Zurich || result.Surface != 50 {
		t.Fatalf("unexpected echo %+v", result)
	}
}

func TestPredictorIdempotent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.json", testXGBoostDump)
	model, err := LoadModel(ModelXGBoost, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := NewPredictor(readyArtifacts(model), testConfig(), zap.NewNop())

	req := zurichRequest(t)
	first, err := p.Estimate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Estimate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *first != *second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestPredictorClampsAndOrdersRange(t *testing.T) {
	for _, raw := range []float64{-500, 0, 200, 1425, 9000} {
		p := NewPredictor(readyArtifacts(&fakeRegressor{value: raw}), testConfig(), zap.NewNop())
		result, err := p.Estimate(context.Background(), zurichRequest(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.RentCHF < 0 {
			t.Fatalf("raw %v: negative rent %v", raw, result.RentCHF)
		}
		if !(result.Range.Min <= result.RentCHF && result.RentCHF <= result.Range.Max) {
			t.Fatalf("raw %v: range %+v does not contain %v", raw, result.Range, result.RentCHF)
		}
		if result.Range.Min < 0 {
			t.Fatalf("raw %v: negative lower bound", raw)
		}
	}
}

func TestPredictorUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		artifacts *Artifacts
		config    PredictorConfig
	}{
		{"nil artifacts", nil, testConfig()},
		{"no model", &Artifacts{FeatureNames: FeatureNames()}, testConfig()},
		{"no feature list", &Artifacts{Model: &fakeRegressor{}}, testConfig()},
		{"scaling without scaler", readyArtifacts(&fakeRegressor{}), PredictorConfig{ScaleInputs: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPredictor(tt.artifacts, tt.config, nil)
			if p.Ready() {
				t.Fatal("expected predictor not ready")
			}
			_, err := p.Estimate(context.Background(), zurichRequest(t))
			if !errors.Is(err, ErrModelUnavailable) {
				t.Fatalf("expected ErrModelUnavailable, got %v", err)
			}
		})
	}
}

func TestPredictorPredictionErrors(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeRegressor
		want  string
	}{
		{"model error", &fakeRegressor{err: errors.New("bad input")}, "bad input"},
		{"panic", &fakeRegressor{panic: true}, "panicked"},
		{"nan", &fakeRegressor{value: math.NaN()}, "non-finite"},
		{"inf", &fakeRegressor{value: math.Inf(1)}, "non-finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPredictor(readyArtifacts(tt.model), testConfig(), zap.NewNop())
			_, err := p.Estimate(context.Background(), zurichRequest(t))
			var predErr *PredictionError
			if !errors.As(err, &predErr) {
				t.Fatalf("expected PredictionError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestPredictorScalesInputs(t *testing.T) {
	mean := make([]float64, NumFeatures)
	scale := make([]float64, NumFeatures)
	coefficients := make([]float64, NumFeatures)
	for i := range scale {
		scale[i] = 1
	}
	// surface column: (50 - 40) / 5 = 2
	mean[4], scale[4], coefficients[4] = 40, 5, 100

	artifacts := &Artifacts{
		Model:        &LinearModel{Intercept: 1000, Coefficients: coefficients},
		Scaler:       &StandardScaler{Mean: mean, Scale: scale},
		FeatureNames: FeatureNames(),
	}
	config := testConfig()
	config.ScaleInputs = true
	p := NewPredictor(artifacts, config, zap.NewNop())

	result, err := p.Estimate(context.Background(), zurichRequest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RentCHF != 1200 {
		t.Fatalf("expected 1200, got %v", result.RentCHF)
	}
}

func TestPredictorHonoursCancelledContext(t *testing.T) {
	p := NewPredictor(readyArtifacts(&fakeRegressor{value: 1}), testConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Estimate(ctx, zurichRequest(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
