package cmd

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/accounts"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/config"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/encoder"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/forecast"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/model"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/pipeline"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/reference"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/store"
)

// buildPipeline loads the feature set, the encoders and the regressor and
// checks they agree.
func buildPipeline(cfg *config.Config, logger zerolog.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	fs, err := cfg.Features.FeatureSet()
	if err != nil {
		return nil, err
	}
	policy, err := encoder.ParsePolicy(cfg.Encoder.Policy)
	if err != nil {
		return nil, err
	}

	encPath := cfg.Artifacts.Path(cfg.Artifacts.Encoders)
	registry, err := encoder.LoadFile(encPath, policy, encoder.WithLogger(logger.With().Str("component", "encoder").Logger()))
	if err != nil {
		return nil, err
	}

	modelPath := cfg.Artifacts.Path(cfg.Artifacts.Model)
	regressor, err := model.Load(modelPath)
	if err != nil {
		return nil, err
	}

	opts = append([]pipeline.Option{pipeline.WithLogger(logger.With().Str("component", "pipeline").Logger())}, opts...)
	p, err := pipeline.New(fs, registry, regressor, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("feature_set", fs.Name).
		Strs("columns", fs.Names()).
		Str("policy", string(policy)).
		Str("model", modelPath).
		Str("encoders", encPath).
		Msg("Loaded prediction pipeline")
	return p, nil
}

func buildForecaster(cfg *config.Config, logger zerolog.Logger) (*forecast.Service, error) {
	arima, err := forecast.LoadARIMA(cfg.Artifacts.Path(cfg.Artifacts.TimeSeries))
	if err != nil {
		return nil, err
	}
	logger.Info().
		Ints("order", arima.Order).
		Str("last_date", arima.LastDate).
		Msg("Loaded time-series model")
	return forecast.NewService(arima,
		forecast.WithMaxPeriods(cfg.Forecast.MaxPeriods),
		forecast.WithCacheSize(cfg.Forecast.CacheSize),
		forecast.WithLogger(logger.With().Str("component", "forecast").Logger()),
	)
}

func buildYears(cfg *config.Config, logger zerolog.Logger) *reference.Years {
	return reference.NewYears(
		cfg.Artifacts.Path(cfg.Artifacts.Reference),
		cfg.Reference.CacheTTL,
		logger.With().Str("component", "reference").Logger(),
	)
}

// openStore opens the database, or returns nil when persistence is disabled.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store.SQLiteStore, error) {
	if cfg.Database.Path == "" {
		logger.Info().Msg("Persistence disabled; accounts and prediction history are off")
		return nil, nil
	}
	db, err := store.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("Opened database")
	return db, nil
}

func buildAccounts(cfg *config.Config, db *store.SQLiteStore, logger zerolog.Logger) (*accounts.Service, error) {
	if db == nil {
		return nil, nil
	}
	if cfg.Auth.Secret == "" {
		if cfg.Auth.RequireToken {
			return nil, errors.NewConfigError("auth", "auth.secret is required when auth.require_token is set", nil)
		}
		logger.Warn().Msg("auth.secret is empty; accounts are disabled")
		return nil, nil
	}
	return accounts.New(db, cfg.Auth.Secret,
		accounts.WithTTL(cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		accounts.WithLogger(logger.With().Str("component", "accounts").Logger()),
	)
}
