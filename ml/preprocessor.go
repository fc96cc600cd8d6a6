package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// StandardScaler is the exported mean/scale of a fitted standard scaler.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LoadScaler reads a scaler artifact.
func LoadScaler(path string) (*StandardScaler, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s StandardScaler
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode scaler %s: %w", path, err)
	}
	if len(s.Mean) != NumFeatures || len(s.Scale) != NumFeatures {
		return nil, fmt.Errorf("scaler has %d/%d stats, want %d", len(s.Mean), len(s.Scale), NumFeatures)
	}
	return &s, nil
}

// Transform returns (v - mean) / scale. A zero scale is treated as 1, the
// way zero-variance columns are fitted.
func (s *StandardScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.Mean) || len(values) != len(s.Scale) {
		return nil, errors.New("values/mean/scale length mismatch")
	}
	result := make([]float64, len(values))
	for i := range values {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		result[i] = (values[i] - s.Mean[i]) / scale
	}
	return result, nil
}
