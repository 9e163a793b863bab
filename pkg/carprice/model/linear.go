package model

import (
	"fmt"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// Linear is an ordinary linear regressor: intercept + sum(coef_i * x_i).
type Linear struct {
	Type         string    `json:"type"`
	Features     []string  `json:"feature_names"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// FeatureNames implements Regressor
func (l *Linear) FeatureNames() []string {
	return append([]string(nil), l.Features...)
}

// Predict implements Regressor
func (l *Linear) Predict(features []float64) (float64, error) {
	if len(features) != len(l.Coefficients) {
		return 0, fmt.Errorf("%w: expected %d features, got %d", errors.ErrInference, len(l.Coefficients), len(features))
	}
	y := l.Intercept
	for i, c := range l.Coefficients {
		y += c * features[i]
	}
	return y, nil
}

func (l *Linear) validate() error {
	if len(l.Features) == 0 || len(l.Features) != len(l.Coefficients) {
		return errors.NewConfigError("model",
			fmt.Sprintf("linear model has %d feature_names and %d coefficients", len(l.Features), len(l.Coefficients)), nil)
	}
	return nil
}
