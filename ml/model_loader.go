package ml

import (
	"fmt"
)

// Model types accepted by LoadModel.
const (
	ModelXGBoost      = "xgboost"
	ModelDecisionTree = "decision_tree"
	ModelLinear       = "linear"
)

type loadOptions struct {
	baseScore float64
}

// LoadOption tunes LoadModel.
type LoadOption func(*loadOptions)

// WithBaseScore sets the XGBoost base score used when the dump does not
// carry one.
func WithBaseScore(score float64) LoadOption {
	return func(o *loadOptions) { o.baseScore = score }
}

// LoadModel reads the model artifact at path.
func LoadModel(modelType, path string, opts ...LoadOption) (Regressor, error) {
	o := loadOptions{baseScore: 0.5}
	for _, opt := range opts {
		opt(&o)
	}

	switch modelType {
	case ModelXGBoost:
		model := &XGBoostModel{baseScore: float32(o.baseScore)}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	case ModelDecisionTree:
		model := &RegressionTree{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	case ModelLinear:
		model := &LinearModel{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, modelType)
	}
}
