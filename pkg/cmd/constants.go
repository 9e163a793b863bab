package cmd

// Command names and help text
const (
	RootCmdName  = "carprice"
	RootCmdShort = "Used-car price prediction service"
	RootCmdLong  = `carprice predicts used-car sale prices from a trained regressor and
forecasts the average sale price from a fitted time-series model.

Configuration is read from carprice.yaml (., ./config or ~/.carprice),
.env files and CARPRICE_* environment variables.`

	ServeCmdName  = "serve"
	ServeCmdShort = "Start the HTTP API"
	ServeCmdLong  = "Load the model artifacts and serve the prediction API until interrupted."

	PredictCmdName  = "predict"
	PredictCmdShort = "Price car records from a JSON file"
	PredictCmdLong  = `Read a JSON object (one car) or array (a batch) and print the predicted
prices. Use --input - to read from stdin.`

	ForecastCmdName  = "forecast"
	ForecastCmdShort = "Forecast the average sale price"
	ForecastCmdLong  = "Print the mean forecast of the time-series model for the next periods."

	VersionCmdName  = "version"
	VersionCmdShort = "Print the version"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=..."
var Version = "dev"
