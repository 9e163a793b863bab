// Package normalize canonicalizes raw car records into the representation
// used at training time: folded, whitespace-collapsed text and finite numbers.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/features"
)

const nbsp = "\u00a0"

// Record is a normalized CarRecord, split by column kind.
type Record struct {
	Text    map[string]string
	Numeric map[string]float64
}

// Normalizer applies the rules of one feature set.
type Normalizer struct {
	fs      features.FeatureSet
	numeric map[string]bool
}

// New returns a Normalizer for fs.
func New(fs features.FeatureSet) *Normalizer {
	numeric := make(map[string]bool)
	for _, name := range fs.NumericFields() {
		numeric[name] = true
	}
	return &Normalizer{fs: fs, numeric: numeric}
}

// Missing returns every required field absent from rec, in feature-set order.
// A null text field counts as missing; a null numeric field is left for
// coercion to reject.
func (n *Normalizer) Missing(rec dal.CarRecord) []string {
	var missing []string
	for _, field := range n.fs.RequiredFields() {
		v, ok := rec[field]
		if !ok || (v == nil && !n.numeric[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}

// Normalize validates required fields, then canonicalizes every column.
// Absent optional columns default to "" (text) or 0 (numeric). A null text
// column reads as ""; a null numeric column is an InvalidNumericFieldError.
func (n *Normalizer) Normalize(rec dal.CarRecord) (Record, error) {
	if missing := n.Missing(rec); len(missing) > 0 {
		return Record{}, errors.NewMissingFieldError(missing...)
	}

	out := Record{
		Text:    make(map[string]string),
		Numeric: make(map[string]float64),
	}
	for _, col := range n.fs.Columns {
		raw, present := rec[col.Name]
		switch col.Kind {
		case features.Categorical:
			if !present || raw == nil {
				out.Text[col.Name] = ""
				continue
			}
			out.Text[col.Name] = Text(ToString(raw))
		case features.Numeric:
			if !present {
				out.Numeric[col.Name] = 0
				continue
			}
			v, err := ToNumber(raw)
			if err != nil {
				return Record{}, errors.NewInvalidNumericFieldError(col.Name, raw)
			}
			out.Numeric[col.Name] = v
		}
	}
	return out, nil
}

// Text canonicalizes one textual value: non-breaking spaces become spaces,
// the value is trimmed, upper-cased and inner whitespace runs collapse to a
// single space. Text is idempotent.
func Text(s string) string {
	s = strings.ReplaceAll(s, nbsp, " ")
	s = strings.TrimSpace(s)
	// Casers hold state and must not be shared between goroutines.
	s = cases.Upper(language.Und).String(s)
	return strings.Join(strings.Fields(s), " ")
}

// ToString coerces a decoded JSON value to text.
func ToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// ToNumber coerces a decoded JSON value to a finite float64.
func ToNumber(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("null is not a number")
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, nbsp, " ")), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("cannot convert %T to number", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite number %v", f)
	}
	return f, nil
}
