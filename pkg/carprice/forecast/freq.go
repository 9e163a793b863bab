package forecast

import (
	"strings"
	"time"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// DefaultFreq is used when the caller does not name a frequency.
const DefaultFreq = "M"

// stepper returns the first anchored date strictly after t.
type stepper func(t time.Time) time.Time

var steppers = map[string]stepper{
	"D":  func(t time.Time) time.Time { return t.AddDate(0, 0, 1) },
	"W":  nextSunday,
	"M":  nextMonthEnd,
	"MS": nextMonthStart,
	"Q":  nextQuarterEnd,
	"A":  nextYearEnd,
	"Y":  nextYearEnd,
}

// Frequencies lists the supported frequency aliases.
func Frequencies() []string {
	return []string{"D", "W", "M", "MS", "Q", "A", "Y"}
}

// NormalizeFreq validates a frequency alias. Empty means DefaultFreq.
func NormalizeFreq(freq string) (string, error) {
	f := strings.ToUpper(strings.TrimSpace(freq))
	if f == "" {
		return DefaultFreq, nil
	}
	if _, ok := steppers[f]; !ok {
		return "", errors.NewInvalidFrequencyError(freq, Frequencies()...)
	}
	return f, nil
}

// Dates returns n dates after last, anchored to freq.
func Dates(last time.Time, n int, freq string) ([]time.Time, error) {
	f, err := NormalizeFreq(freq)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.NewInvalidPeriodsError(n, 0)
	}
	next := steppers[f]
	out := make([]time.Time, n)
	cur := dateOnly(last)
	for i := range out {
		cur = next(cur)
		out[i] = cur
	}
	return out, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthEnd(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

func nextSunday(t time.Time) time.Time {
	days := (7 - int(t.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return t.AddDate(0, 0, days)
}

func nextMonthEnd(t time.Time) time.Time {
	end := monthEnd(t.Year(), t.Month())
	if end.After(t) {
		return end
	}
	return monthEnd(t.Year(), t.Month()+1)
}

func nextMonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func nextQuarterEnd(t time.Time) time.Time {
	// quarter ends fall on months 3, 6, 9 and 12
	q := ((int(t.Month())-1)/3 + 1) * 3
	end := monthEnd(t.Year(), time.Month(q))
	if end.After(t) {
		return end
	}
	return monthEnd(t.Year(), time.Month(q+3))
}

func nextYearEnd(t time.Time) time.Time {
	end := time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	if end.After(t) {
		return end
	}
	return end.AddDate(1, 0, 0)
}
