package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/artifacts"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// DateLayout is the layout of last_date in the artifact and of every
// forecast point date.
const DateLayout = "2006-01-02"

// ARIMA is a fitted ARIMA(p,d,q) model of the average sale price series.
//
// The artifact keeps only what the mean forecast needs: the coefficients,
// the tail of the observed series and the tail of the in-sample residuals.
// History and Residuals are ordered oldest first.
type ARIMA struct {
	Order     []int     `json:"order"`
	Const     float64   `json:"const"`
	AR        []float64 `json:"ar"`
	MA        []float64 `json:"ma"`
	History   []float64 `json:"history"`
	Residuals []float64 `json:"residuals"`
	LastDate  string    `json:"last_date"`

	last time.Time
}

// LoadARIMA resolves and decodes a time-series artifact. The primary path is
// tried first, then the same file name one directory up.
func LoadARIMA(path string) (*ARIMA, error) {
	resolved, err := artifacts.Resolve("time-series model", path)
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(resolved)
	if err != nil {
		return nil, err
	}
	return ParseARIMA(payload)
}

// ParseARIMA decodes and validates a time-series artifact held in memory.
func ParseARIMA(payload []byte) (*ARIMA, error) {
	m := &ARIMA{}
	if err := json.Unmarshal(payload, m); err != nil {
		return nil, fmt.Errorf("decode time-series artifact: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// P is the autoregressive order.
func (m *ARIMA) P() int { return m.Order[0] }

// D is the differencing order.
func (m *ARIMA) D() int { return m.Order[1] }

// Q is the moving-average order.
func (m *ARIMA) Q() int { return m.Order[2] }

// LastObserved is the date of the final observation.
func (m *ARIMA) LastObserved() time.Time { return m.last }

func (m *ARIMA) validate() error {
	fail := func(format string, args ...any) error {
		return errors.NewConfigError("forecast", fmt.Sprintf(format, args...), nil)
	}
	if len(m.Order) != 3 {
		return fail("order must have three elements (p, d, q), got %d", len(m.Order))
	}
	p, d, q := m.Order[0], m.Order[1], m.Order[2]
	if p < 0 || q < 0 {
		return fail("negative order (%d, %d, %d)", p, d, q)
	}
	if d != 0 && d != 1 {
		return fail("differencing order %d is not supported", d)
	}
	if len(m.AR) != p {
		return fail("expected %d ar coefficients, got %d", p, len(m.AR))
	}
	if len(m.MA) != q {
		return fail("expected %d ma coefficients, got %d", q, len(m.MA))
	}
	if len(m.History) < p+d || len(m.History) == 0 {
		return fail("history holds %d observations, need at least %d", len(m.History), max(p+d, 1))
	}
	if len(m.Residuals) < q {
		return fail("residuals hold %d values, need at least %d", len(m.Residuals), q)
	}
	for _, vs := range [][]float64{{m.Const}, m.AR, m.MA, m.History, m.Residuals} {
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fail("artifact contains a non-finite value")
			}
		}
	}
	last, err := time.Parse(DateLayout, m.LastDate)
	if err != nil {
		return errors.NewConfigError("forecast", "invalid last_date", err)
	}
	m.last = last
	return nil
}

// Mean returns the mean forecast for the next steps observations. Future
// shocks are taken as zero, so the moving-average terms fade after q steps.
func (m *ARIMA) Mean(steps int) []float64 {
	if steps <= 0 {
		return nil
	}

	w := m.History
	if m.D() == 1 {
		w = make([]float64, len(m.History)-1)
		for i := 1; i < len(m.History); i++ {
			w[i-1] = m.History[i] - m.History[i-1]
		}
	}

	// series and shocks are extended in place as the recursion runs
	series := append([]float64(nil), w...)
	shocks := append([]float64(nil), m.Residuals...)

	out := make([]float64, steps)
	level := m.History[len(m.History)-1]
	for h := 0; h < steps; h++ {
		next := m.Const
		for i, phi := range m.AR {
			next += phi * series[len(series)-1-i]
		}
		for j, theta := range m.MA {
			next += theta * shocks[len(shocks)-1-j]
		}
		series = append(series, next)
		shocks = append(shocks, 0)

		if m.D() == 1 {
			level += next
			out[h] = level
		} else {
			out[h] = next
		}
	}
	return out
}
