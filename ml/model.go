package ml

// Regressor is a loaded model: a pure function from a feature vector in
// FeatureNames order to a monthly rent in CHF. Implementations must be safe
// for concurrent use once loaded.
type Regressor interface {
	Predict(features []float64) (float64, error)
}

// ModelInfo is the static description of the deployed model.
type ModelInfo struct {
	ModelType    string  `json:"model_type"`
	R2Score      float64 `json:"r2_score"`
	TrainingData string  `json:"training_data"`
	LastTrained  string  `json:"last_updated"`
}
