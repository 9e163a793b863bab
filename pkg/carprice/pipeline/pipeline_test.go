package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/encoder"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/features"
)

// fakeRegressor records the last vector it was given and returns a fixed value.
type fakeRegressor struct {
	mu    sync.Mutex
	names []string
	out   float64
	err   error
	last  []float64
}

func (f *fakeRegressor) FeatureNames() []string { return f.names }

func (f *fakeRegressor) Predict(v []float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = append([]float64(nil), v...)
	return f.out, f.err
}

type memRecorder struct {
	entries []dal.PredictionLog
}

func (m *memRecorder) RecordPrediction(_ context.Context, e dal.PredictionLog) error {
	m.entries = append(m.entries, e)
	return nil
}

func vocabularies() map[string][]string {
	return map[string][]string{
		"maker":      {"HONDA", "NISSAN", "TOYOTA"},
		"car_name":   {"TOYOTA COROLLA", "TOYOTA PRIUS"},
		"fuel_type":  {"DIESEL", "HYBRID", "PETROL"},
		"chassis_id": {"NZE141", "ZRE152"},
		"colour":     {"BLACK", "SILVER GREY", "WHITE"},
	}
}

func record() dal.CarRecord {
	return dal.CarRecord{
		"registration_year": 2015,
		"maker":             "toyota ",
		"car_name":          "  Toyota   Corolla ",
		"fuel_type":         "Petrol",
		"engine_size":       1.8,
		"odometer":          "120000",
		"condition":         4,
		"chassis_id":        "zre152",
		"colour":            "silver  grey",
	}
}

func newPipeline(t *testing.T, policy encoder.Policy, out float64, opts ...Option) (*Pipeline, *fakeRegressor, *encoder.Registry) {
	t.Helper()
	fs := features.Full()
	reg, err := encoder.New(vocabularies(), policy)
	require.NoError(t, err)
	fake := &fakeRegressor{names: fs.Names(), out: out}
	p, err := New(fs, reg, fake, opts...)
	require.NoError(t, err)
	return p, fake, reg
}

func TestVectorizeGoldenOrder(t *testing.T) {
	p, fake, _ := newPipeline(t, encoder.Strict, 10000)

	vec, err := p.Vectorize(record())
	require.NoError(t, err)

	want := dal.FeatureVector{
		2015,   // registration_year
		2,      // maker TOYOTA
		0,      // car_name TOYOTA COROLLA
		2,      // fuel_type PETROL
		1.8,    // engine_size
		120000, // odometer
		4,      // condition
		1,      // chassis_id ZRE152
		1,      // colour SILVER GREY
	}
	assert.Equal(t, want, vec)

	_, err = p.Predict(context.Background(), record())
	require.NoError(t, err)
	assert.Equal(t, []float64(want), fake.last, "the regressor receives the same vector")
}

func TestPredictRounds(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Strict, 12345.678)

	res, err := p.Predict(context.Background(), record())
	require.NoError(t, err)
	assert.Equal(t, 12345.68, res.Price)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 12345.68, Round(12345.678))
	assert.Equal(t, 0.13, Round(0.125))
	assert.Equal(t, -2.35, Round(-2.345))
	assert.Equal(t, 100.0, Round(100))
}

func TestPredictMissingField(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Strict, 1)

	rec := record()
	delete(rec, "engine_size")
	_, err := p.Predict(context.Background(), rec)

	var missing *errors.MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"engine_size"}, missing.Fields)
}

func TestPredictInvalidNumeric(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Strict, 1)

	rec := record()
	rec["odometer"] = "abc"
	_, err := p.Predict(context.Background(), rec)

	var invalid *errors.InvalidNumericFieldError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "odometer", invalid.Field)
}

func TestPredictNullNumeric(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Strict, 1)

	rec := record()
	rec["odometer"] = nil
	_, err := p.Predict(context.Background(), rec)

	var invalid *errors.InvalidNumericFieldError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "odometer", invalid.Field)
	assert.EqualError(t, err, "invalid numeric value in field: odometer")
}

func TestPredictUnseenCategoryStrict(t *testing.T) {
	p, _, reg := newPipeline(t, encoder.Strict, 1)

	rec := record()
	rec["maker"] = "AlienMotors"
	_, err := p.Predict(context.Background(), rec)

	var unknown *errors.UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "maker", unknown.Field)
	assert.Equal(t, "ALIENMOTORS", unknown.Value)

	classes, _ := reg.ClassesFor("maker")
	assert.Len(t, classes, 3)
}

func TestPredictUnseenCategoryPermissive(t *testing.T) {
	p, fake, reg := newPipeline(t, encoder.Permissive, 9000)

	before, _ := reg.ClassesFor("maker")

	rec := record()
	rec["maker"] = "AlienMotors"
	res, err := p.Predict(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, res.Price)

	after, _ := reg.ClassesFor("maker")
	require.Len(t, after, len(before)+1)
	assert.Equal(t, "ALIENMOTORS", after[len(before)])
	assert.Equal(t, float64(len(before)), fake.last[1], "new label takes the next unused index")
}

func TestPredictBatchIsolatesFailures(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Strict, 5000.555)

	bad := record()
	delete(bad, "colour")
	res := p.PredictBatch(context.Background(), []dal.CarRecord{record(), bad, record()})

	require.Len(t, res.Prices, 3)
	require.Len(t, res.Errors, 3)

	require.NotNil(t, res.Prices[0])
	assert.Equal(t, 5000.56, *res.Prices[0])
	assert.Nil(t, res.Errors[0])

	assert.Nil(t, res.Prices[1])
	require.NotNil(t, res.Errors[1])
	assert.Equal(t, "missing fields: colour", *res.Errors[1])

	require.NotNil(t, res.Prices[2])
	assert.Nil(t, res.Errors[2])
}

func TestPredictRawIsolatesNonObjects(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Strict, 4200)

	car, err := json.Marshal(record())
	require.NoError(t, err)
	items := []json.RawMessage{car, json.RawMessage(`42`), json.RawMessage(`"car"`), car}

	res := p.PredictRaw(context.Background(), items)
	require.Len(t, res.Prices, 4)
	require.Len(t, res.Errors, 4)

	for _, i := range []int{0, 3} {
		require.NotNil(t, res.Prices[i])
		assert.Equal(t, 4200.0, *res.Prices[i])
		assert.Nil(t, res.Errors[i])
	}
	for _, i := range []int{1, 2} {
		assert.Nil(t, res.Prices[i])
		require.NotNil(t, res.Errors[i])
		assert.Contains(t, *res.Errors[i], "expected a JSON object describing a car")
	}
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord(json.RawMessage(`{"maker":"kia","odometer":12}`))
	require.NoError(t, err)
	assert.Equal(t, dal.CarRecord{"maker": "kia", "odometer": 12.0}, rec)

	for _, raw := range []string{`null`, `[1]`, `7`, `{`} {
		_, err := DecodeRecord(json.RawMessage(raw))
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), raw)
	}
}

func TestPredictBatchEmpty(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Strict, 1)
	res := p.PredictBatch(context.Background(), nil)
	assert.Empty(t, res.Prices)
	assert.Empty(t, res.Errors)
}

func TestPredictNonFiniteOutput(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Strict, math.NaN())
	_, err := p.Predict(context.Background(), record())
	assert.True(t, errors.Is(err, errors.ErrInference))
}

func TestPredictCanceledContext(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Strict, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Predict(ctx, record())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictRecords(t *testing.T) {
	rec := &memRecorder{}
	p, _, _ := newPipeline(t, encoder.Strict, 7000, WithRecorder(rec))

	_, err := p.Predict(context.Background(), record())
	require.NoError(t, err)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, dal.PredictionLog{
		CarModel: "TOYOTA TOYOTA COROLLA",
		Year:     2015,
		Mileage:  120000,
		Price:    7000,
	}, rec.entries[0])
}

func TestNewChecksSchema(t *testing.T) {
	fs := features.Full()
	reg, err := encoder.New(vocabularies(), encoder.Strict)
	require.NoError(t, err)

	_, err = New(fs, reg, &fakeRegressor{names: features.Basic().Names()})
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	partial := vocabularies()
	delete(partial, "colour")
	reg, err = encoder.New(partial, encoder.Strict)
	require.NoError(t, err)
	_, err = New(fs, reg, &fakeRegressor{names: fs.Names()})

	var unknown *errors.UnknownFieldError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "colour", unknown.Field)
}

func TestBasicFeatureSet(t *testing.T) {
	fs := features.Basic()
	reg, err := encoder.New(vocabularies(), encoder.Strict)
	require.NoError(t, err)
	fake := &fakeRegressor{names: fs.Names(), out: 3210.987}
	p, err := New(fs, reg, fake)
	require.NoError(t, err)

	rec := record()
	delete(rec, "condition")
	delete(rec, "chassis_id")
	delete(rec, "colour")

	res, err := p.Predict(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 3210.99, res.Price)
	assert.Equal(t, []float64{2015, 2, 0, 2, 1.8, 120000}, fake.last)
}

func TestAllowedValues(t *testing.T) {
	p, _, _ := newPipeline(t, encoder.Permissive, 1)

	allowed := p.AllowedValues()
	assert.Len(t, allowed, 5)
	assert.Equal(t, []string{"HONDA", "NISSAN", "TOYOTA"}, allowed["maker"])

	rec := record()
	rec["colour"] = "Pearl"
	_, err := p.Predict(context.Background(), rec)
	require.NoError(t, err)
	assert.Contains(t, p.AllowedValues()["colour"], "PEARL")
}
