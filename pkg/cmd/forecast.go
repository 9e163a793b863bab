package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/forecast"
)

var (
	forecastPeriods int
	forecastFreq    string
)

func init() {
	ForecastCmd.Flags().IntVarP(&forecastPeriods, "periods", "n", 12, "number of periods to forecast")
	ForecastCmd.Flags().StringVarP(&forecastFreq, "freq", "f", forecast.DefaultFreq, "frequency: D, W, M, MS, Q, A or Y")
}

var ForecastCmd = &cobra.Command{
	Use:   ForecastCmdName,
	Short: ForecastCmdShort,
	Long:  ForecastCmdLong,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		svc, err := buildForecaster(cfg, logger)
		if err != nil {
			return err
		}
		points, err := svc.Forecast(cmd.Context(), forecastPeriods, forecastFreq)
		if err != nil {
			return err
		}
		out := json.NewEncoder(cmd.OutOrStdout())
		out.SetIndent("", "  ")
		return out.Encode(dal.ForecastResponse{Forecast: points})
	},
}
