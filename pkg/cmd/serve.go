package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/pipeline"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/server"
)

const shutdownTimeout = 10 * time.Second

func init() {
	ServeCmd.Flags().String("address", "", "listen address (default :8080)")
	ServeCmd.Flags().String("encoder-policy", "", "unseen label policy: strict or permissive")
	_ = viper.BindPFlag("server.address", ServeCmd.Flags().Lookup("address"))
	_ = viper.BindPFlag("encoder.policy", ServeCmd.Flags().Lookup("encoder-policy"))
}

var (
	ServeCmd = &cobra.Command{
		Use:   ServeCmdName,
		Short: ServeCmdShort,
		Long:  ServeCmdLong,
		RunE:  serveCmdFunc(),
	}
)

func serveCmdFunc() func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Info().Str("version", Version).Msg("Started serve cmd")

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		db, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		var opts []pipeline.Option
		if db != nil {
			opts = append(opts, pipeline.WithRecorder(db))
		}
		p, err := buildPipeline(cfg, logger, opts...)
		if err != nil {
			return err
		}
		forecaster, err := buildForecaster(cfg, logger)
		if err != nil {
			return err
		}
		logger.Debug().Int("max_periods", forecaster.MaxPeriods()).Msg("Loaded time-series model")
		acc, err := buildAccounts(cfg, db, logger)
		if err != nil {
			return err
		}

		svc := server.Services{
			Predictor:  p,
			Forecaster: forecaster,
			Years:      buildYears(cfg, logger),
		}
		if acc != nil {
			svc.Accounts = acc
		}
		if db != nil {
			svc.History = db
		}

		serve, err := server.NewHTTPServer(server.Config{
			Address:      cfg.Server.Address,
			Prefix:       cfg.Server.Prefix,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			CORSOrigins:  cfg.Server.CORSOrigins,
			RequireToken: cfg.Auth.RequireToken,
		}, svc, logger)
		if err != nil {
			return err
		}

		signalCh := make(chan os.Signal, 1)
		errCh := make(chan error, 1)

		go func() {
			logger.Info().Str("address", serve.Addr).Str("prefix", cfg.Server.Prefix).Msg("Listening")
			if err := serve.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signalCh)

		select {
		case sig := <-signalCh:
			logger.Info().Str("signal", sig.String()).Msg("Shutting down the server")
		case err := <-errCh:
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := serve.Shutdown(shutdownCtx); err != nil {
			return err
		}

		if ext := p.Registry().Extensions(); len(ext) > 0 {
			logger.Info().Interface("labels", ext).Msg("Labels appended at runtime were not persisted")
		}
		return nil
	}
}
