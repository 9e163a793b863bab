package dal

import (
	"encoding/json"
	"time"
)

// CarRecord defines a raw car description as decoded from a request body.
// Values may be strings, numbers or null; the pipeline normalizes them.
type CarRecord map[string]any

// FeatureVector defines the encoded model input in training column order
type FeatureVector []float64

// PredictionResult defines a single price prediction
type PredictionResult struct {
	Price float64 `json:"predicted_price"`
}

// BatchResult defines per-record batch outcomes aligned with the input.
// Exactly one of Prices[i], Errors[i] is non-nil.
type BatchResult struct {
	Prices []*float64 `json:"predicted_prices"`
	Errors []*string  `json:"errors"`
}

// ForecastPoint defines one step of a price forecast
type ForecastPoint struct {
	Date          string  `json:"ds"`
	PredictedMean float64 `json:"yhat"`
}

// ForecastResponse defines the time-series HTTP response
type ForecastResponse struct {
	Forecast []ForecastPoint `json:"forecast"`
}

// ErrorResponse defines an HTTP error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// ModelInfo defines the allowed dropdown values for clients
type ModelInfo struct {
	Allowed map[string][]string
	Years   []int
}

// MarshalJSON flattens Allowed into allowed_<field>s keys.
func (m ModelInfo) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Allowed)+1)
	for field, values := range m.Allowed {
		if values == nil {
			values = []string{}
		}
		out["allowed_"+field+"s"] = values
	}
	years := m.Years
	if years == nil {
		years = []int{}
	}
	out["allowed_years"] = years
	return json.Marshal(out)
}

// PredictionLog defines a stored prediction
type PredictionLog struct {
	ID        int64     `json:"id"`
	CarModel  string    `json:"car_model"`
	Year      int       `json:"year"`
	Mileage   int       `json:"mileage"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// PredictionsResponse defines the prediction history HTTP response
type PredictionsResponse struct {
	Predictions []PredictionLog `json:"predictions"`
}

// Credentials defines a register/login request body
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair defines issued JWTs
type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// User defines a registered account
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
