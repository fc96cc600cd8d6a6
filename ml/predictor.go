package ml

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"

	"go.uber.org/zap"

	"swissrelocator/cities"
)

// PredictorConfig holds the constants attached to the deployed model.
type PredictorConfig struct {
	// MAE is the test-set mean absolute error of the loaded model in CHF.
	MAE float64
	// EURRate converts CHF to EUR.
	EURRate float64
	// ScaleInputs standardizes vectors before inference; linear models need it.
	ScaleInputs bool
	Info        ModelInfo
}

// ConfidenceRange is the +/- MAE band around a prediction.
type ConfidenceRange struct {
	Min float64
	Max float64
	MAE float64
}

// RentPrediction is the shaped result of one prediction.
type RentPrediction struct {
	RentCHF       float64
	RentEUR       float64
	PricePerM2CHF float64
	Range         ConfidenceRange
	City          cities.City
	Surface       float64
	Model         ModelInfo
}

// Health is the load state of each artifact.
type Health struct {
	ModelLoaded    bool
	ScalerLoaded   bool
	FeaturesLoaded bool
}

// Ready reports whether predictions can be served.
func (h Health) Ready(scaleInputs bool) bool {
	return h.ModelLoaded && h.FeaturesLoaded && (h.ScalerLoaded || !scaleInputs)
}

// Predictor serves predictions from artifacts loaded once at startup. It
// holds no mutable state and is safe for concurrent use.
type Predictor struct {
	model    Regressor
	scaler   *StandardScaler
	features []string
	config   PredictorConfig
	logger   *zap.Logger
}

// NewPredictor wraps loaded artifacts. A nil or incomplete artifact set
// yields a degraded predictor that fails every request with
// ErrModelUnavailable.
func NewPredictor(artifacts *Artifacts, config PredictorConfig, logger *zap.Logger) *Predictor {
	if artifacts == nil {
		artifacts = &Artifacts{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{
		model:    artifacts.Model,
		scaler:   artifacts.Scaler,
		features: artifacts.FeatureNames,
		config:   config,
		logger:   logger,
	}
}

// Health reports which artifacts the predictor holds.
func (p *Predictor) Health() Health {
	return Health{
		ModelLoaded:    p.model != nil,
		ScalerLoaded:   p.scaler != nil,
		FeaturesLoaded: p.features != nil,
	}
}

// Ready reports whether predictions can be served.
func (p *Predictor) Ready() bool {
	return p.Health().Ready(p.config.ScaleInputs)
}

// Info returns the model metadata from configuration.
func (p *Predictor) Info() ModelInfo {
	return p.config.Info
}

// MAE is the model's mean absolute error in CHF, used for the confidence band.
func (p *Predictor) MAE() float64 {
	return p.config.MAE
}

// FeatureNames returns the loaded feature list, or nil when it did not load.
func (p *Predictor) FeatureNames() []string {
	if p.features == nil {
		return nil
	}
	return append([]string(nil), p.features...)
}

// Estimate encodes req and predicts its rent.
func (p *Predictor) Estimate(ctx context.Context, req RentRequest) (*RentPrediction, error) {
	return p.Predict(ctx, Encode(req), req.City, req.Surface)
}

// Predict runs the model on an encoded vector. surface is the request
// surface, used for the per-m2 price.
func (p *Predictor) Predict(ctx context.Context, features RentFeatures, city cities.City, surface float64) (*RentPrediction, error) {
	if !p.Ready() {
		return nil, ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := p.invoke(features.Vector())
	if err != nil {
		p.logger.Error("model invocation failed", zap.String("city", city.Name), zap.Float64("surface", surface), zap.Error(err))
		return nil, &PredictionError{Err: err}
	}

	rent := math.Max(raw, 0)
	mae := p.config.MAE
	return &RentPrediction{
		RentCHF:       rent,
		RentEUR:       rent * p.config.EURRate,
		PricePerM2CHF: rent / surface,
		Range: ConfidenceRange{
			Min: math.Max(0, rent-mae),
			Max: rent + mae,
			MAE: mae,
		},
		City:    city,
		Surface: surface,
		Model:   p.config.Info,
	}, nil
}

func (p *Predictor) invoke(vector []float64) (out float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("model panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()

	if p.config.ScaleInputs {
		vector, err = p.scaler.Transform(vector)
		if err != nil {
			return 0, err
		}
	}
	out, err = p.model.Predict(vector)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("model returned non-finite value %v", out)
	}
	return out, nil
}
