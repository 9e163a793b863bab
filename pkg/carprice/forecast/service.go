// Package forecast serves average-price forecasts from a fitted time-series
// model.
package forecast

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

const (
	// DefaultCacheSize is the number of (periods, freq) results kept in memory.
	DefaultCacheSize = 128
	// DefaultMaxPeriods bounds the forecast horizon when none is configured.
	DefaultMaxPeriods = 120
)

type cacheKey struct {
	periods int
	freq    string
}

// Service produces forecasts. It is safe for concurrent use.
type Service struct {
	model      *ARIMA
	maxPeriods int
	cacheSize  int
	cache      *lru.Cache[cacheKey, []dal.ForecastPoint]
	log        zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxPeriods bounds the forecast horizon. Values below one keep
// DefaultMaxPeriods.
func WithMaxPeriods(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPeriods = n
		}
	}
}

// WithCacheSize sets the result cache size. Zero or less disables caching.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		s.cacheSize = n
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

// NewService wraps a fitted model.
func NewService(model *ARIMA, opts ...Option) (*Service, error) {
	if model == nil {
		return nil, errors.NewConfigError("forecast", "time-series model is required", nil)
	}
	s := &Service{
		model:      model,
		maxPeriods: DefaultMaxPeriods,
		cacheSize:  DefaultCacheSize,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[cacheKey, []dal.ForecastPoint](s.cacheSize)
		if err != nil {
			return nil, errors.NewConfigError("forecast", "create result cache", err)
		}
		s.cache = cache
	}
	return s, nil
}

// MaxPeriods returns the largest horizon Forecast accepts.
func (s *Service) MaxPeriods() int {
	return s.maxPeriods
}

// Forecast returns periods points after the last observation, spaced by freq.
func (s *Service) Forecast(ctx context.Context, periods int, freq string) ([]dal.ForecastPoint, error) {
	if periods < 1 || periods > s.maxPeriods {
		return nil, errors.NewInvalidPeriodsError(periods, s.maxPeriods)
	}
	f, err := NormalizeFreq(freq)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cacheKey{periods: periods, freq: f}
	if s.cache != nil {
		if points, ok := s.cache.Get(key); ok {
			return clonePoints(points), nil
		}
	}

	dates, err := Dates(s.model.LastObserved(), periods, f)
	if err != nil {
		return nil, err
	}
	means := s.model.Mean(periods)

	points := make([]dal.ForecastPoint, periods)
	for i := range points {
		points[i] = dal.ForecastPoint{
			Date:          dates[i].Format(DateLayout),
			PredictedMean: means[i],
		}
	}

	s.log.Debug().
		Int("periods", periods).
		Str("freq", f).
		Msg("Computed forecast")

	if s.cache != nil {
		s.cache.Add(key, clonePoints(points))
	}
	return points, nil
}

func clonePoints(points []dal.ForecastPoint) []dal.ForecastPoint {
	return append([]dal.ForecastPoint(nil), points...)
}
