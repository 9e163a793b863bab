package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/features"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "/api", cfg.Server.Prefix)
	assert.Equal(t, "strict", cfg.Encoder.Policy)
	assert.Equal(t, "full", cfg.Features.Set)
	assert.Equal(t, 120, cfg.Forecast.MaxPeriods)
	assert.Equal(t, 60*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.False(t, cfg.Auth.RequireToken)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.File)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	file := filepath.Join(dir, "carprice.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  address: ":9090"
  read_timeout: 5s
artifacts:
  dir: /srv/artifacts
features:
  set: basic
  required: [maker, car_name]
encoder:
  policy: permissive
forecast:
  max_periods: 36
`), 0o600))

	t.Setenv("CARPRICE_LOG_LEVEL", "debug")
	t.Setenv("CARPRICE_FORECAST_CACHE_SIZE", "8")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, file, cfg.File)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "permissive", cfg.Encoder.Policy)
	assert.Equal(t, 36, cfg.Forecast.MaxPeriods)
	assert.Equal(t, 8, cfg.Forecast.CacheSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, filepath.Join("/srv/artifacts", "ml_model.json"), cfg.Artifacts.Path(cfg.Artifacts.Model))

	fs, err := cfg.Features.FeatureSet()
	require.NoError(t, err)
	assert.Equal(t, features.BasicName, fs.Name)
	assert.Equal(t, []string{"maker", "car_name"}, fs.RequiredFields())
}

func TestLoadLegacyServerAddress(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SERVER_ADDRESS", ":7070")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Address: ":8080"},
			Features: FeaturesConfig{Set: "full"},
			Encoder:  EncoderConfig{Policy: "strict"},
			Database: DatabaseConfig{Path: "carprice.db"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"bad policy", func(c *Config) { c.Encoder.Policy = "lenient" }},
		{"bad feature set", func(c *Config) { c.Features.Set = "huge" }},
		{"negative max periods", func(c *Config) { c.Forecast.MaxPeriods = -1 }},
		{"token without database", func(c *Config) {
			c.Auth.RequireToken = true
			c.Database.Path = ""
		}},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.True(t, errors.Is(c.Validate(), errors.ErrConfiguration))
		})
	}
}
