package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

// LinearModel is a Ridge/Lasso export: intercept plus one coefficient per
// feature. It expects standardized inputs.
type LinearModel struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

func (m *LinearModel) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.Coefficients), len(features))
	}
	sum := m.Intercept
	for i, c := range m.Coefficients {
		sum += c * features[i]
	}
	return sum, nil
}

// Load reads JSON coefficients from path.
func (m *LinearModel) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LinearModel
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return fmt.Errorf("decode linear model %s: %w", path, err)
	}
	if len(loaded.Coefficients) != NumFeatures {
		return fmt.Errorf("linear model has %d coefficients, want %d", len(loaded.Coefficients), NumFeatures)
	}
	*m = loaded
	return nil
}
