package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/config"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/logging"
)

var cfgFile string

var RootCmd = &cobra.Command{
	Use:           RootCmdName,
	Short:         RootCmdShort,
	Long:          RootCmdLong,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches carprice.yaml)")
	RootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))

	RootCmd.AddCommand(ServeCmd, PredictCmd, ForecastCmd, VersionCmd)
}

// loadConfig reads the configuration and builds the logger every command
// shares.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := logging.New(cfg.Log.Logging())
	if cfg.File != "" {
		logger.Debug().Str("file", cfg.File).Msg("Loaded config file")
	}
	return cfg, logger, nil
}
