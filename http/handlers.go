package http

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"swissrelocator/cities"
	"swissrelocator/ml"
	"swissrelocator/monitoring"
)

const (
	serviceName    = "SwissRelocator API"
	serviceVersion = "1.0.0"
)

type rentAPI struct {
	predictor *ml.Predictor
	resolver  *cities.Resolver
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	basePath  string
}

func (a *rentAPI) register(mux *http.ServeMux) {
	a.handle(mux, "GET /{$}", a.handleIndex)
	a.handle(mux, "POST "+a.basePath+"/predict-rent", a.handlePredictRent)
	a.handle(mux, "GET "+a.basePath+"/model-info", a.handleModelInfo)
	a.handle(mux, "GET "+a.basePath+"/health", a.handleHealth)
}

// handle registers h and records request metrics under the route pattern.
func (a *rentAPI) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if a.metrics == nil {
		mux.HandleFunc(pattern, h)
		return
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		a.metrics.ObserveRequest(r.Method, pattern, rec.status, time.Since(start))
	})
}

type confidenceRange struct {
	MinCHF float64 `json:"min_chf"`
	MaxCHF float64 `json:"max_chf"`
	MAECHF float64 `json:"mae_chf"`
}

type predictResponse struct {
	PredictedRentCHF float64         `json:"predicted_rent_chf"`
	PredictedRentEUR float64         `json:"predicted_rent_eur"`
	PricePerM2CHF    float64         `json:"price_per_m2_chf"`
	ConfidenceRange  confidenceRange `json:"confidence_range"`
	City             string          `json:"city"`
	Surface          float64         `json:"surface"`
	ModelInfo        ml.ModelInfo    `json:"model_info"`
}

type modelInfoResponse struct {
	ModelType       string   `json:"model_type"`
	R2Score         float64  `json:"r2_score"`
	MAECHF          float64  `json:"mae_chf"`
	FeaturesCount   int      `json:"features_count"`
	Features        []string `json:"features"`
	SupportedCities []string `json:"supported_cities"`
	LastTrained     string   `json:"last_trained"`
}

type healthResponse struct {
	Status         string `json:"status"`
	ModelLoaded    bool   `json:"model_loaded"`
	ScalerLoaded   bool   `json:"scaler_loaded"`
	FeaturesLoaded bool   `json:"features_loaded"`
}

type errorResponse struct {
	Detail string       `json:"detail"`
	Errors []FieldError `json:"errors,omitempty"`
}

func (a *rentAPI) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"name":    serviceName,
		"version": serviceVersion,
		"endpoints": map[string]string{
			"predict_rent": "POST " + a.basePath + "/predict-rent",
			"model_info":   "GET " + a.basePath + "/model-info",
			"health":       "GET " + a.basePath + "/health",
		},
	})
}

func (a *rentAPI) handlePredictRent(w http.ResponseWriter, r *http.Request) {
	payload, typeErrs, err := decodePayload(r.Body)
	if err == nil {
		var req ml.RentRequest
		if req, err = payload.toRequest(a.resolver, typeErrs); err == nil {
			a.predict(r.Context(), w, req)
			return
		}
	}

	var verr *ValidationError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &verr):
		a.observePrediction("", monitoring.OutcomeInvalid, 0)
		respondJSONStatus(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid request", Errors: verr.Fields})
	case errors.As(err, &maxErr):
		respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
	default:
		respondError(w, http.StatusBadRequest, "request body must be a JSON object")
	}
}

func (a *rentAPI) predict(ctx context.Context, w http.ResponseWriter, req ml.RentRequest) {
	result, err := a.predictor.Estimate(ctx, req)

	var predErr *ml.PredictionError
	switch {
	case err == nil:
	case errors.Is(err, ml.ErrModelUnavailable):
		a.observePrediction(req.City.Name, monitoring.OutcomeUnavailable, 0)
		respondError(w, http.StatusServiceUnavailable, "model not available")
		return
	case errors.Is(err, context.DeadlineExceeded):
		a.observePrediction(req.City.Name, monitoring.OutcomeError, 0)
		respondError(w, http.StatusGatewayTimeout, "request timeout")
		return
	case errors.As(err, &predErr):
		a.observePrediction(req.City.Name, monitoring.OutcomeError, 0)
		respondError(w, http.StatusInternalServerError, "prediction failed")
		return
	default:
		a.logger.Error("unexpected prediction error", zap.Error(err))
		a.observePrediction(req.City.Name, monitoring.OutcomeError, 0)
		respondError(w, http.StatusInternalServerError, "prediction failed")
		return
	}

	a.observePrediction(req.City.Name, monitoring.OutcomeSuccess, result.RentCHF)
	respondJSON(w, predictResponse{
		PredictedRentCHF: round2(result.RentCHF),
		PredictedRentEUR: round2(result.RentEUR),
		PricePerM2CHF:    round2(result.PricePerM2CHF),
		ConfidenceRange: confidenceRange{
			MinCHF: round2(result.Range.Min),
			MaxCHF: round2(result.Range.Max),
			MAECHF: round2(result.Range.MAE),
		},
		City:      result.City.Name,
		Surface:   result.Surface,
		ModelInfo: result.Model,
	})
}

func (a *rentAPI) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info := a.predictor.Info()
	features := a.predictor.FeatureNames()
	if features == nil {
		features = ml.FeatureNames()
	}
	respondJSON(w, modelInfoResponse{
		ModelType:       info.ModelType,
		R2Score:         info.R2Score,
		MAECHF:          a.predictor.MAE(),
		FeaturesCount:   len(features),
		Features:        features,
		SupportedCities: cities.Names(),
		LastTrained:     info.LastTrained,
	})
}

func (a *rentAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := a.predictor.Health()
	status := "healthy"
	if !a.predictor.Ready() {
		status = "degraded"
	}
	respondJSON(w, healthResponse{
		Status:         status,
		ModelLoaded:    h.ModelLoaded,
		ScalerLoaded:   h.ScalerLoaded,
		FeaturesLoaded: h.FeaturesLoaded,
	})
}

func (a *rentAPI) observePrediction(city, outcome string, rent float64) {
	if a.metrics != nil {
		a.metrics.ObservePrediction(city, outcome, rent)
	}
}

func respondJSON(w http.ResponseWriter, data any) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSONStatus(w, status, errorResponse{Detail: detail})
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
