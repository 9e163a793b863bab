// Package server exposes the price prediction and forecast services over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// Predictor prices car records.
type Predictor interface {
	Predict(ctx context.Context, rec dal.CarRecord) (dal.PredictionResult, error)
	PredictRaw(ctx context.Context, items []json.RawMessage) dal.BatchResult
	AllowedValues() map[string][]string
}

// Forecaster produces average-price forecasts.
type Forecaster interface {
	Forecast(ctx context.Context, periods int, freq string) ([]dal.ForecastPoint, error)
}

// YearSource lists the registration years clients may pick.
type YearSource interface {
	Allowed() []int
}

// Accounts registers users and issues tokens.
type Accounts interface {
	TokenValidator
	Register(ctx context.Context, username, password string) (dal.TokenPair, error)
	Login(ctx context.Context, username, password string) (dal.TokenPair, error)
}

// History lists stored predictions.
type History interface {
	RecentPredictions(ctx context.Context, limit int) ([]dal.PredictionLog, error)
}

// Config configures the HTTP server.
type Config struct {
	Address      string
	Prefix       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	// RequireToken guards the prediction routes with bearer authentication.
	RequireToken bool
}

// Services are the collaborators behind the routes. Only Predictor is
// mandatory; routes whose collaborator is nil answer 404 or degrade.
type Services struct {
	Predictor  Predictor
	Forecaster Forecaster
	Years      YearSource
	Accounts   Accounts
	History    History
}

// NewHTTPServer returns a new HTTP server
func NewHTTPServer(cfg Config, svc Services, logger zerolog.Logger) (*http.Server, error) {
	handler, err := NewHandler(cfg, svc, logger)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, nil
}

// NewHandler builds the routed and wrapped handler.
func NewHandler(cfg Config, svc Services, logger zerolog.Logger) (http.Handler, error) {
	if svc.Predictor == nil {
		return nil, errors.NewConfigError("server", "predictor is required", nil)
	}
	if cfg.RequireToken && svc.Accounts == nil {
		return nil, errors.NewConfigError("server", "token authentication needs the accounts service", nil)
	}

	h := newHTTPServer(svc)
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	handle(r, "/health", h.Health, http.MethodGet)

	api := r
	if prefix := normalizePrefix(cfg.Prefix); prefix != "" {
		api = r.PathPrefix(prefix).Subrouter()
	}

	protected := api.NewRoute().Subrouter()
	if cfg.RequireToken {
		protected.Use(RequireBearer(svc.Accounts))
	}
	handle(protected, "/predict", h.Predict, http.MethodPost)
	handle(protected, "/predict/batch", h.PredictBatch, http.MethodPost)
	handle(protected, "/predict/time-series", h.Forecast, http.MethodGet)
	handle(protected, "/predictions", h.Predictions, http.MethodGet)

	handle(api, "/model-info", h.ModelInfo, http.MethodGet)
	handle(api, "/register", h.Register, http.MethodPost)
	handle(api, "/login", h.Login, http.MethodPost)
	handle(api, "/health", h.Health, http.MethodGet)

	wrap := Chain(
		Recovery(logger),
		RequestLogger(logger),
		CORS(cfg.CORSOrigins),
	)
	return wrap(r), nil
}

// handle registers path with and without a trailing slash; POST clients
// do not follow redirects.
func handle(r *mux.Router, path string, f http.HandlerFunc, methods ...string) {
	r.HandleFunc(path, f).Methods(methods...)
	r.HandleFunc(path+"/", f).Methods(methods...)
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

type httpServer struct {
	predictor  Predictor
	forecaster Forecaster
	years      YearSource
	accounts   Accounts
	history    History
}

func newHTTPServer(svc Services) *httpServer {
	return &httpServer{
		predictor:  svc.Predictor,
		forecaster: svc.Forecaster,
		years:      svc.Years,
		accounts:   svc.Accounts,
		history:    svc.History,
	}
}
