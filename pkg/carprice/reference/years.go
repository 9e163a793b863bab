// Package reference reads the training dataset the service ships with, for
// the values clients may pick from.
package reference

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/artifacts"
)

// YearColumn is the dataset column holding the registration year.
const YearColumn = "year"

const yearsKey = "allowed_years"

// Years serves the distinct registration years found in the dataset.
// A missing or unreadable dataset yields an empty list, never an error.
type Years struct {
	path  string
	cache *gocache.Cache
	log   zerolog.Logger
}

// NewYears creates a Years reader for the dataset at path. Results are kept
// for ttl; a zero ttl keeps them for the process lifetime.
func NewYears(path string, ttl time.Duration, logger zerolog.Logger) *Years {
	expiry := ttl
	cleanup := ttl * 2
	if ttl <= 0 {
		expiry = gocache.NoExpiration
		cleanup = 0
	}
	return &Years{
		path:  path,
		cache: gocache.New(expiry, cleanup),
		log:   logger,
	}
}

// Allowed returns the sorted distinct years.
func (y *Years) Allowed() []int {
	if cached, ok := y.cache.Get(yearsKey); ok {
		return append([]int(nil), cached.([]int)...)
	}

	years, err := LoadYears(y.path)
	if err != nil {
		y.log.Warn().Err(err).Str("path", y.path).Msg("Failed to load allowed years")
		years = []int{}
	}
	y.cache.Set(yearsKey, years, gocache.DefaultExpiration)
	return append([]int(nil), years...)
}

// LoadYears resolves the dataset (primary path, then its parent directory)
// and reads the year column.
func LoadYears(path string) ([]int, error) {
	resolved, err := artifacts.Resolve("reference dataset", path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadYears(f)
}

// ReadYears reads a CSV with a header row and returns the distinct values of
// its year column in ascending order. Blank and non-numeric cells are skipped.
func ReadYears(r io.Reader) ([]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := -1
	for i, name := range header {
		if HeaderName(name) == YearColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found", YearColumn)
	}

	seen := make(map[int]struct{})
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if col >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		seen[int(v)] = struct{}{}
	}

	years := make([]int, 0, len(seen))
	for year := range seen {
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}

// HeaderName normalizes a dataset column header.
func HeaderName(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "\u00a0", " ")
}
