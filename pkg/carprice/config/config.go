// Package config loads carprice settings from defaults, an optional YAML
// file, .env files and CARPRICE_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/artifacts"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/encoder"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/features"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/forecast"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/logging"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CARPRICE"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Features  FeaturesConfig  `mapstructure:"features"`
	Encoder   EncoderConfig   `mapstructure:"encoder"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Reference ReferenceConfig `mapstructure:"reference"`

	// File is the config file that was read, empty if none.
	File string `mapstructure:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	Prefix       string        `mapstructure:"prefix"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// ArtifactsConfig names the trained artifacts. Relative file names are
// resolved against Dir.
type ArtifactsConfig struct {
	Dir        string `mapstructure:"dir"`
	Model      string `mapstructure:"model"`
	Encoders   string `mapstructure:"encoders"`
	TimeSeries string `mapstructure:"timeseries"`
	Reference  string `mapstructure:"reference"`
}

// FeaturesConfig selects the feature-set contract.
type FeaturesConfig struct {
	Set      string   `mapstructure:"set"`
	File     string   `mapstructure:"file"`
	Required []string `mapstructure:"required"`
}

// EncoderConfig selects the unseen-label policy.
type EncoderConfig struct {
	Policy string `mapstructure:"policy"`
}

// ForecastConfig bounds the forecast endpoint.
type ForecastConfig struct {
	MaxPeriods int `mapstructure:"max_periods"`
	CacheSize  int `mapstructure:"cache_size"`
}

// DatabaseConfig locates the SQLite database. An empty path disables
// accounts and prediction history.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	Secret       string        `mapstructure:"secret"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	RequireToken bool          `mapstructure:"require_token"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ReferenceConfig configures the reference dataset cache.
type ReferenceConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.prefix", "/api")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("artifacts.dir", ".")
	v.SetDefault("artifacts.model", "ml_model.json")
	v.SetDefault("artifacts.encoders", "label_encoders.json")
	v.SetDefault("artifacts.timeseries", "ts_model.json")
	v.SetDefault("artifacts.reference", "Data.csv")

	v.SetDefault("features.set", "full")
	v.SetDefault("features.file", "")
	v.SetDefault("features.required", []string{})

	v.SetDefault("encoder.policy", string(encoder.Strict))

	v.SetDefault("forecast.max_periods", forecast.DefaultMaxPeriods)
	v.SetDefault("forecast.cache_size", forecast.DefaultCacheSize)

	v.SetDefault("database.path", "carprice.db")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.access_ttl", 60*time.Minute)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.require_token", false)

	d := logging.DefaultConfig()
	v.SetDefault("log.level", d.Level)
	v.SetDefault("log.format", d.Format)
	v.SetDefault("log.output", d.Output)
	v.SetDefault("log.max_size_mb", d.MaxSizeMB)
	v.SetDefault("log.max_backups", d.MaxBackups)
	v.SetDefault("log.max_age_days", d.MaxAgeDays)

	v.SetDefault("reference.cache_ttl", 10*time.Minute)
}

// Load reads the configuration into v and decodes it. configFile may be
// empty, in which case carprice.yaml is searched for in the usual places
// and its absence is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	loadEnvFiles()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// SERVER_ADDRESS predates the prefixed variables
	if err := v.BindEnv("server.address", EnvPrefix+"_SERVER_ADDRESS", "SERVER_ADDRESS"); err != nil {
		return nil, errors.NewConfigError("config", "bind server address", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "read "+configFile, err)
		}
	} else {
		v.SetConfigName("carprice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".carprice"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "read config file", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("config", "decode", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.NewConfigError("config", "server.address is empty", nil)
	}
	if _, err := encoder.ParsePolicy(c.Encoder.Policy); err != nil {
		return errors.NewConfigError("config", "encoder.policy", err)
	}
	if c.Features.File == "" {
		if _, err := features.Builtin(c.Features.Set); err != nil {
			return errors.NewConfigError("config", "features.set", err)
		}
	}
	if c.Forecast.MaxPeriods < 0 {
		return errors.NewConfigError("config", "forecast.max_periods must not be negative", nil)
	}
	if c.Auth.RequireToken && c.Database.Path == "" {
		return errors.NewConfigError("config", "auth.require_token needs database.path for accounts", nil)
	}
	return nil
}

// Path resolves an artifact file name against the artifact directory.
func (a ArtifactsConfig) Path(name string) string {
	return artifacts.Join(a.Dir, name)
}

// Logging converts the log section for logging.New.
func (l LogConfig) Logging() logging.Config {
	return logging.Config{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}

// FeatureSet builds the configured feature-set contract.
func (f FeaturesConfig) FeatureSet() (features.FeatureSet, error) {
	var (
		fs  features.FeatureSet
		err error
	)
	if f.File != "" {
		fs, err = features.LoadFile(f.File)
	} else {
		fs, err = features.Builtin(f.Set)
	}
	if err != nil {
		return features.FeatureSet{}, err
	}
	if len(f.Required) > 0 {
		fs = fs.WithRequired(f.Required)
	}
	return fs, fs.Validate()
}

// loadEnvFiles loads .env then .env.local; variables already set win.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}
