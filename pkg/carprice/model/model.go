// Package model loads the trained price regressors from their JSON artifacts.
package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// Regressor maps a feature vector to a single price.
type Regressor interface {
	Predict(features []float64) (float64, error)
	// FeatureNames is the column order the regressor was trained with.
	FeatureNames() []string
}

// Supported artifact types
const (
	TypeRandomForest = "random_forest"
	TypeLinear       = "linear"
)

type header struct {
	Type string `json:"type"`
}

// Load reads a regressor artifact, dispatching on its "type" field.
func Load(path string) (Regressor, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewModelNotFoundError("model artifact", path)
		}
		return nil, err
	}
	return Parse(payload)
}

// Parse decodes a regressor artifact held in memory.
func Parse(payload []byte) (Regressor, error) {
	var h header
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}

	switch h.Type {
	case TypeRandomForest:
		forest := &RandomForest{}
		if err := json.Unmarshal(payload, forest); err != nil {
			return nil, fmt.Errorf("decode random forest: %w", err)
		}
		if err := forest.validate(); err != nil {
			return nil, err
		}
		return forest, nil
	case TypeLinear:
		linear := &Linear{}
		if err := json.Unmarshal(payload, linear); err != nil {
			return nil, fmt.Errorf("decode linear model: %w", err)
		}
		if err := linear.validate(); err != nil {
			return nil, err
		}
		return linear, nil
	default:
		return nil, errors.NewConfigError("model", fmt.Sprintf("unsupported model type %q", h.Type), nil)
	}
}

// CheckSchema verifies a regressor was trained on exactly the given columns.
func CheckSchema(r Regressor, columns []string) error {
	names := r.FeatureNames()
	if len(names) != len(columns) {
		return errors.NewConfigError("model",
			fmt.Sprintf("model expects %d features %v, feature set has %d %v", len(names), names, len(columns), columns), nil)
	}
	for i := range names {
		if names[i] != columns[i] {
			return errors.NewConfigError("model",
				fmt.Sprintf("feature %d is %q in the model but %q in the feature set", i, names[i], columns[i]), nil)
		}
	}
	return nil
}
