// Package pipeline turns raw car records into price predictions:
// validate, normalize, encode, assemble the feature vector, infer, round.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/encoder"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/features"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/model"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/normalize"
)

// PricePlaces is the number of decimals kept in a predicted price.
const PricePlaces = 2

// Recorder receives every successful prediction.
type Recorder interface {
	RecordPrediction(ctx context.Context, entry dal.PredictionLog) error
}

// Pipeline is safe for concurrent use once constructed.
type Pipeline struct {
	fs         features.FeatureSet
	normalizer *normalize.Normalizer
	registry   *encoder.Registry
	regressor  model.Regressor
	recorder   Recorder
	log        zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.log = logger
	}
}

// WithRecorder stores successful predictions.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// New wires a pipeline and checks that the feature set, the encoders and the
// regressor agree on the input schema.
func New(fs features.FeatureSet, registry *encoder.Registry, regressor model.Regressor, opts ...Option) (*Pipeline, error) {
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	if registry == nil || regressor == nil {
		return nil, errors.NewConfigError("pipeline", "registry and regressor are required", nil)
	}
	if err := model.CheckSchema(regressor, fs.Names()); err != nil {
		return nil, err
	}
	for _, field := range fs.CategoricalFields() {
		if !registry.Has(field) {
			return nil, errors.NewConfigError("pipeline", "categorical column without encoder", errors.NewUnknownFieldError(field))
		}
	}

	p := &Pipeline{
		fs:         fs,
		normalizer: normalize.New(fs),
		registry:   registry,
		regressor:  regressor,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// FeatureSet returns the contract the pipeline was built with.
func (p *Pipeline) FeatureSet() features.FeatureSet {
	return p.fs
}

// Registry returns the encoder registry.
func (p *Pipeline) Registry() *encoder.Registry {
	return p.registry
}

// AllowedValues returns the known labels of every categorical column,
// including labels appended under the permissive policy.
func (p *Pipeline) AllowedValues() map[string][]string {
	out := make(map[string][]string)
	for _, field := range p.fs.CategoricalFields() {
		classes, err := p.registry.ClassesFor(field)
		if err != nil {
			continue
		}
		out[field] = classes
	}
	return out
}

// Vectorize validates, normalizes and encodes rec into the training-order
// feature vector.
func (p *Pipeline) Vectorize(rec dal.CarRecord) (dal.FeatureVector, error) {
	vec, _, err := p.vectorize(rec)
	return vec, err
}

func (p *Pipeline) vectorize(rec dal.CarRecord) (dal.FeatureVector, normalize.Record, error) {
	norm, err := p.normalizer.Normalize(rec)
	if err != nil {
		return nil, normalize.Record{}, err
	}

	vec := make(dal.FeatureVector, len(p.fs.Columns))
	for i, col := range p.fs.Columns {
		switch col.Kind {
		case features.Numeric:
			vec[i] = norm.Numeric[col.Name]
		case features.Categorical:
			idx, err := p.registry.Encode(col.Name, norm.Text[col.Name])
			if err != nil {
				return nil, normalize.Record{}, err
			}
			vec[i] = float64(idx)
		}
	}
	return vec, norm, nil
}

// Predict returns the rounded price for one record.
func (p *Pipeline) Predict(ctx context.Context, rec dal.CarRecord) (dal.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return dal.PredictionResult{}, err
	}

	vec, norm, err := p.vectorize(rec)
	if err != nil {
		return dal.PredictionResult{}, err
	}

	raw, err := p.regressor.Predict(vec)
	if err != nil {
		return dal.PredictionResult{}, err
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return dal.PredictionResult{}, fmt.Errorf("%w: model returned %v", errors.ErrInference, raw)
	}

	price := Round(raw)
	p.log.Debug().
		Floats64("features", vec).
		Float64("raw", raw).
		Float64("price", price).
		Msg("Predicted price")

	p.record(ctx, norm, price)
	return dal.PredictionResult{Price: price}, nil
}

// PredictBatch predicts each record independently. A failing record never
// aborts the batch; its position carries the error message instead.
func (p *Pipeline) PredictBatch(ctx context.Context, recs []dal.CarRecord) dal.BatchResult {
	return p.predictEach(len(recs), func(i int) (dal.PredictionResult, error) {
		return p.Predict(ctx, recs[i])
	})
}

// PredictRaw is PredictBatch over undecoded JSON elements. An element that is
// not a car object fails at its own position.
func (p *Pipeline) PredictRaw(ctx context.Context, items []json.RawMessage) dal.BatchResult {
	return p.predictEach(len(items), func(i int) (dal.PredictionResult, error) {
		rec, err := DecodeRecord(items[i])
		if err != nil {
			return dal.PredictionResult{}, err
		}
		return p.Predict(ctx, rec)
	})
}

func (p *Pipeline) predictEach(n int, predict func(i int) (dal.PredictionResult, error)) dal.BatchResult {
	out := dal.BatchResult{
		Prices: make([]*float64, n),
		Errors: make([]*string, n),
	}
	for i := 0; i < n; i++ {
		res, err := predict(i)
		if err != nil {
			msg := err.Error()
			out.Errors[i] = &msg
			continue
		}
		price := res.Price
		out.Prices[i] = &price
	}
	return out
}

// DecodeRecord unmarshals one JSON object into a CarRecord.
func DecodeRecord(raw json.RawMessage) (dal.CarRecord, error) {
	var rec dal.CarRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
		return nil, errors.NewValidationError("", "expected a JSON object describing a car")
	}
	return rec, nil
}

func (p *Pipeline) record(ctx context.Context, norm normalize.Record, price float64) {
	if p.recorder == nil {
		return
	}
	entry := dal.PredictionLog{
		CarModel: strings.TrimSpace(norm.Text["maker"] + " " + norm.Text["car_name"]),
		Year:     int(norm.Numeric["registration_year"]),
		Mileage:  int(norm.Numeric["odometer"]),
		Price:    price,
	}
	if err := p.recorder.RecordPrediction(ctx, entry); err != nil {
		p.log.Warn().Err(err).Msg("Failed to record prediction")
	}
}

// Round rounds a raw model output to PricePlaces decimals, half away from zero.
func Round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(PricePlaces).Float64()
	return f
}
