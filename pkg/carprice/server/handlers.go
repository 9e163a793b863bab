package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Predict defines a POST handler pricing a single car record
func (h *httpServer) Predict(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	var rec dal.CarRecord
	if err := decodeBody(w, r, &rec); err != nil || rec == nil {
		log.Debug().Err(err).Msg("Invalid predict body")
		writeError(w, http.StatusBadRequest, "expected a JSON object describing a car")
		return
	}

	res, err := h.predictor.Predict(r.Context(), rec)
	if err != nil {
		log.Info().Err(err).Str("user", requestUser(r)).Msg("Prediction failed")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PredictBatch defines a POST handler pricing a list of car records
func (h *httpServer) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var items []json.RawMessage
	if err := decodeBody(w, r, &items); err != nil || items == nil {
		writeError(w, http.StatusBadRequest, "expected a list of car records")
		return
	}

	res := h.predictor.PredictRaw(r.Context(), items)
	failed := 0
	for _, e := range res.Errors {
		if e != nil {
			failed++
		}
	}
	zerolog.Ctx(r.Context()).Debug().
		Int("records", len(items)).
		Int("failed", failed).
		Str("user", requestUser(r)).
		Msg("Batch predicted")
	writeJSON(w, http.StatusOK, res)
}

// Forecast defines a GET handler returning the average-price forecast
func (h *httpServer) Forecast(w http.ResponseWriter, r *http.Request) {
	if h.forecaster == nil {
		writeError(w, http.StatusServiceUnavailable, "forecasting is not configured")
		return
	}
	vars := r.URL.Query()

	periods, err := validatePeriods(w, vars)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("periods validation failed")
		return
	}

	points, err := h.forecaster.Forecast(r.Context(), periods, vars.Get("freq"))
	if err != nil {
		if errors.Is(err, errors.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Forecast failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dal.ForecastResponse{Forecast: points})
}

// ModelInfo defines a GET handler listing the values clients may pick
func (h *httpServer) ModelInfo(w http.ResponseWriter, r *http.Request) {
	info := dal.ModelInfo{Allowed: h.predictor.AllowedValues()}
	if h.years != nil {
		info.Years = h.years.Allowed()
	}
	writeJSON(w, http.StatusOK, info)
}

// Register defines a POST handler creating an account
func (h *httpServer) Register(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		writeError(w, http.StatusNotFound, "accounts are disabled")
		return
	}
	var creds dal.Credentials
	if err := decodeBody(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "expected username and password")
		return
	}

	pair, err := h.accounts.Register(r.Context(), creds.Username, creds.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, pair)
	case errors.Is(err, errors.ErrInvalidInput), errors.Is(err, errors.ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Registration failed")
		writeError(w, http.StatusInternalServerError, "registration failed")
	}
}

// Login defines a POST handler exchanging credentials for tokens
func (h *httpServer) Login(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		writeError(w, http.StatusNotFound, "accounts are disabled")
		return
	}
	var creds dal.Credentials
	if err := decodeBody(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "expected username and password")
		return
	}

	pair, err := h.accounts.Login(r.Context(), creds.Username, creds.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pair)
	case errors.Is(err, errors.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
	}
}

// Predictions defines a GET handler listing recent predictions
func (h *httpServer) Predictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "prediction history is disabled")
		return
	}
	limit, err := validateLimit(w, r.URL.Query())
	if err != nil {
		return
	}

	preds, err := h.history.RecentPredictions(r.Context(), limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to list predictions")
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}
	if preds == nil {
		preds = []dal.PredictionLog{}
	}
	writeJSON(w, http.StatusOK, dal.PredictionsResponse{Predictions: preds})
}

// Health defines a liveness check
func (h *httpServer) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestUser names the bearer of the request token, empty when the route is
// not protected.
func requestUser(r *http.Request) string {
	if c, ok := ClaimsFromContext(r.Context()); ok {
		return c.Username
	}
	return ""
}

func validatePeriods(w http.ResponseWriter, vars url.Values) (int, error) {
	raw, ok := vars["periods"]
	if !ok || len(raw) == 0 {
		writeError(w, http.StatusBadRequest, `Query param "periods" is required`)
		return 0, errors.NewValidationError("periods", "is required")
	}
	periods, err := strconv.Atoi(raw[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, `"periods" must be an integer`)
		return 0, err
	}
	if periods < 1 {
		perr := errors.NewInvalidPeriodsError(periods, 0)
		writeError(w, http.StatusBadRequest, perr.Error())
		return 0, perr
	}
	return periods, nil
}

func validateLimit(w http.ResponseWriter, vars url.Values) (int, error) {
	limit := vars.Get("limit")
	if limit == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(limit)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be a non-negative integer: %s", limit))
		if err == nil {
			err = errors.NewValidationError("limit", "must not be negative")
		}
		return 0, err
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dal.ErrorResponse{Error: msg})
}
