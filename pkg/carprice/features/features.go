// Package features describes the feature-set contract: which columns a trained
// model consumes, in which order, and which of them a request must supply.
package features

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

// Kind tells the pipeline how a column is turned into a number.
type Kind string

const (
	// Numeric columns are coerced to float64 as-is.
	Numeric Kind = "numeric"
	// Categorical columns are normalized as text and label encoded.
	Categorical Kind = "categorical"
)

// Column is one model input.
type Column struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
}

// FeatureSet is an ordered list of columns plus the required-field list.
// Column order is the training-time order and must match the model artifact.
type FeatureSet struct {
	Name     string   `yaml:"name"`
	Columns  []Column `yaml:"columns"`
	Required []string `yaml:"required"`
}

// Built-in feature set names
const (
	FullName  = "full"
	BasicName = "basic"
)

// Full is the complete record layout with condition, chassis id and colour.
func Full() FeatureSet {
	return FeatureSet{
		Name: FullName,
		Columns: []Column{
			{Name: "registration_year", Kind: Numeric},
			{Name: "maker", Kind: Categorical},
			{Name: "car_name", Kind: Categorical},
			{Name: "fuel_type", Kind: Categorical},
			{Name: "engine_size", Kind: Numeric},
			{Name: "odometer", Kind: Numeric},
			{Name: "condition", Kind: Numeric},
			{Name: "chassis_id", Kind: Categorical},
			{Name: "colour", Kind: Categorical},
		},
	}
}

// Basic is the reduced layout used by older models.
func Basic() FeatureSet {
	return FeatureSet{
		Name: BasicName,
		Columns: []Column{
			{Name: "registration_year", Kind: Numeric},
			{Name: "maker", Kind: Categorical},
			{Name: "car_name", Kind: Categorical},
			{Name: "fuel_type", Kind: Categorical},
			{Name: "engine_size", Kind: Numeric},
			{Name: "odometer", Kind: Numeric},
		},
	}
}

// Builtin returns a built-in feature set by name.
func Builtin(name string) (FeatureSet, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FullName:
		return Full(), nil
	case BasicName:
		return Basic(), nil
	default:
		return FeatureSet{}, errors.NewConfigError("features", fmt.Sprintf("unknown feature set %q", name), nil)
	}
}

// LoadFile reads a feature set from a YAML file and validates it.
func LoadFile(path string) (FeatureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FeatureSet{}, errors.NewConfigError("features", "read "+path, err)
	}
	var fs FeatureSet
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return FeatureSet{}, errors.NewConfigError("features", "parse "+path, err)
	}
	if err := fs.Validate(); err != nil {
		return FeatureSet{}, err
	}
	return fs, nil
}

// WithRequired returns a copy whose required list is replaced.
// An empty list keeps the default (every column required).
func (fs FeatureSet) WithRequired(fields []string) FeatureSet {
	out := fs
	out.Columns = append([]Column(nil), fs.Columns...)
	if len(fields) > 0 {
		out.Required = append([]string(nil), fields...)
	}
	return out
}

// Validate checks the contract is usable.
func (fs FeatureSet) Validate() error {
	if len(fs.Columns) == 0 {
		return errors.NewConfigError("features", "feature set has no columns", nil)
	}
	seen := make(map[string]bool, len(fs.Columns))
	for _, c := range fs.Columns {
		if c.Name == "" {
			return errors.NewConfigError("features", "column with empty name", nil)
		}
		if seen[c.Name] {
			return errors.NewConfigError("features", "duplicate column "+c.Name, nil)
		}
		if c.Kind != Numeric && c.Kind != Categorical {
			return errors.NewConfigError("features", fmt.Sprintf("column %s has unknown kind %q", c.Name, c.Kind), nil)
		}
		seen[c.Name] = true
	}
	for _, r := range fs.Required {
		if !seen[r] {
			return errors.NewConfigError("features", "required field "+r+" is not a column", nil)
		}
	}
	return nil
}

// Names returns the column names in training order.
func (fs FeatureSet) Names() []string {
	names := make([]string, len(fs.Columns))
	for i, c := range fs.Columns {
		names[i] = c.Name
	}
	return names
}

// RequiredFields returns the fields a record must carry.
func (fs FeatureSet) RequiredFields() []string {
	if len(fs.Required) == 0 {
		return fs.Names()
	}
	return append([]string(nil), fs.Required...)
}

// CategoricalFields returns the label-encoded columns in training order.
func (fs FeatureSet) CategoricalFields() []string {
	return fs.byKind(Categorical)
}

// NumericFields returns the numeric columns in training order.
func (fs FeatureSet) NumericFields() []string {
	return fs.byKind(Numeric)
}

func (fs FeatureSet) byKind(kind Kind) []string {
	var names []string
	for _, c := range fs.Columns {
		if c.Kind == kind {
			names = append(names, c.Name)
		}
	}
	return names
}
