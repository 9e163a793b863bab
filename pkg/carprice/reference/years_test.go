package reference

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/logging"
)

const dataset = "Maker, Year ,Price\n" +
	"Toyota,2015,12000\n" +
	"Honda,2012,8000\n" +
	"Nissan,,5000\n" +
	"Mazda,unknown,4000\n" +
	"Toyota,2015,11000\n" +
	"Subaru,2009.0,3000\n"

func TestReadYears(t *testing.T) {
	years, err := ReadYears(strings.NewReader(dataset))
	require.NoError(t, err)
	assert.Equal(t, []int{2009, 2012, 2015}, years)
}

func TestReadYearsMissingColumn(t *testing.T) {
	_, err := ReadYears(strings.NewReader("maker,price\nToyota,1\n"))
	assert.Error(t, err)
}

func TestHeaderName(t *testing.T) {
	assert.Equal(t, "year", HeaderName("  YEAR "))
	assert.Equal(t, "engine size", HeaderName("Engine\u00a0Size"))
	assert.Equal(t, "year", HeaderName("\ufeffYear"))
}

func TestYearsAllowed(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	require.NoError(t, os.Mkdir(app, 0o755))

	y := NewYears(filepath.Join(app, "Data.csv"), time.Minute, logging.Nop())
	assert.Equal(t, []int{}, y.Allowed(), "missing dataset yields an empty list")

	// the empty result is cached until the entry expires
	require.NoError(t, os.WriteFile(filepath.Join(root, "Data.csv"), []byte(dataset), 0o600))
	assert.Equal(t, []int{}, y.Allowed())

	fresh := NewYears(filepath.Join(app, "Data.csv"), 0, logging.Nop())
	got := fresh.Allowed()
	assert.Equal(t, []int{2009, 2012, 2015}, got)

	got[0] = 1900
	assert.Equal(t, []int{2009, 2012, 2015}, fresh.Allowed())
}
