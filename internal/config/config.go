// Package config loads and validates the run configuration: scoring
// parameters, investor profiles, guardrail settings, and the
// operational surfaces (paths, fetcher, results server, logging).
// Configuration is resolved once at startup and passed into each stage
// as an immutable value; nothing in the pipeline reads ambient state.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"fundrank/internal/features"
	"fundrank/internal/guardrails"
	"fundrank/internal/scoring"
)

// envPrefix namespaces the environment overrides, e.g.
// FUNDRANK_SERVER_PORT.
const envPrefix = "FUNDRANK"

// Config is the complete application configuration.
type Config struct {
	Run        RunConfig         `yaml:"run" envconfig:"RUN"`
	Profiles   []scoring.Profile `yaml:"profiles" ignored:"true"`
	Guardrails guardrails.Config `yaml:"guardrails" ignored:"true"`
	Fetch      FetchConfig       `yaml:"fetch" envconfig:"FETCH"`
	Server     ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig       `yaml:"paths" envconfig:"PATHS"`
}

// RunConfig holds the global scoring parameters shared by every stage.
type RunConfig struct {
	AsOf              string  `yaml:"as_of" envconfig:"AS_OF"` // ISO date; empty means today
	RiskFreeAnnual    float64 `yaml:"risk_free_annual" envconfig:"RISK_FREE_ANNUAL" validate:"gte=0,lt=1"`
	NumPeriodMonths   int     `yaml:"num_period_months" envconfig:"NUM_PERIOD_MONTHS" validate:"gte=1"`
	AnnualizationDays int     `yaml:"annualization_days" envconfig:"ANNUALIZATION_DAYS" validate:"gte=1"`
	Window12M         int     `yaml:"window_12m" envconfig:"WINDOW_12M" validate:"gte=2"`
	Window3M          int     `yaml:"window_3m" envconfig:"WINDOW_3M" validate:"gte=2"`
	MinCoverage       float64 `yaml:"min_coverage" envconfig:"MIN_COVERAGE" validate:"gte=0,lte=1"`
	EpsilonVolatility float64 `yaml:"epsilon_volatility" envconfig:"EPSILON_VOLATILITY" validate:"gte=0"`
	SharpeCap         float64 `yaml:"sharpe_cap" envconfig:"SHARPE_CAP" validate:"gt=0"`
	LowerPercentile   float64 `yaml:"lower_percentile" envconfig:"LOWER_PERCENTILE" validate:"gte=0,lt=1"`
	UpperPercentile   float64 `yaml:"upper_percentile" envconfig:"UPPER_PERCENTILE" validate:"gt=0,lte=1"`
	UseLogVolatility  bool    `yaml:"use_log_volatility" envconfig:"USE_LOG_VOLATILITY"`
	FundAgeCapYears   float64 `yaml:"fund_age_cap_years" envconfig:"FUND_AGE_CAP_YEARS" validate:"gt=0"`
	TopN              int     `yaml:"top_n" envconfig:"TOP_N" validate:"gte=1"`
}

// AsOfDate parses the configured reference date, defaulting to today.
func (r RunConfig) AsOfDate() (time.Time, error) {
	if r.AsOf == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", r.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse as_of date %q: %w", r.AsOf, err)
	}
	return t, nil
}

// VolatilityParams maps the run config onto the volatility calculator.
func (r RunConfig) VolatilityParams() features.VolatilityParams {
	return features.VolatilityParams{
		Window12M:         r.Window12M,
		Window3M:          r.Window3M,
		AnnualizationDays: r.AnnualizationDays,
		MinCoverage:       r.MinCoverage,
	}
}

// SharpeParams maps the run config onto the Sharpe calculator.
func (r RunConfig) SharpeParams() features.SharpeParams {
	return features.SharpeParams{
		RiskFreeAnnual:    r.RiskFreeAnnual,
		Window12M:         r.Window12M,
		Window3M:          r.Window3M,
		AnnualizationDays: r.AnnualizationDays,
		EpsilonVolatility: r.EpsilonVolatility,
		Cap:               r.SharpeCap,
	}
}

// NormalizeParams maps the run config onto the normalizer.
func (r RunConfig) NormalizeParams() scoring.NormalizeParams {
	return scoring.NormalizeParams{
		LowerPercentile:  r.LowerPercentile,
		UpperPercentile:  r.UpperPercentile,
		UseLogVolatility: r.UseLogVolatility,
	}
}

// FetchConfig controls the CVM dataset downloader.
type FetchConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	RequestsPerSec float64       `yaml:"requests_per_sec" envconfig:"REQUESTS_PER_SEC" validate:"gt=0"`
	Burst          int           `yaml:"burst" envconfig:"BURST" validate:"gte=1"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	Months         int           `yaml:"months" envconfig:"MONTHS" validate:"gte=1"`
}

// ServerConfig contains the results API server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
}

// PathsConfig contains the filesystem layout.
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			RiskFreeAnnual:    0.10,
			NumPeriodMonths:   12,
			AnnualizationDays: 252,
			Window12M:         252,
			Window3M:          63,
			MinCoverage:       0.5,
			EpsilonVolatility: 1e-8,
			SharpeCap:         20,
			LowerPercentile:   0.05,
			UpperPercentile:   0.95,
			FundAgeCapYears:   30,
			TopN:              20,
		},
		Profiles:   DefaultProfiles(),
		Guardrails: guardrails.DefaultConfig(),
		Fetch: FetchConfig{
			BaseURL:        "https://dados.cvm.gov.br/dados",
			RequestsPerSec: 2,
			Burst:          1,
			Timeout:        5 * time.Minute,
			Months:         14,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Paths: PathsConfig{
			DataDir:   "data",
			OutputDir: "output",
		},
	}
}

// DefaultProfiles returns the three built-in investor profiles.
func DefaultProfiles() []scoring.Profile {
	return []scoring.Profile{
		{
			Name: "conservador",
			Weights: map[string]float64{
				features.FeatureVolatility:      0.30,
				features.FeatureLiquidity:       0.25,
				features.FeatureCreditQuality:   0.20,
				features.FeatureConcentration:   0.10,
				features.FeatureDiversification: 0.10,
				features.FeatureFundAge:         0.05,
			},
		},
		{
			Name: "moderado",
			Weights: map[string]float64{
				features.FeatureSharpe:          0.25,
				features.FeatureVolatility:      0.20,
				features.FeatureLiquidity:       0.15,
				features.FeatureCreditQuality:   0.15,
				features.FeatureConcentration:   0.10,
				features.FeatureDiversification: 0.10,
				features.FeatureFundAge:         0.05,
			},
		},
		{
			Name: "arrojado",
			Weights: map[string]float64{
				features.FeatureSharpe:          0.40,
				features.FeatureVolatility:      0.10,
				features.FeatureCreditQuality:   0.10,
				features.FeatureLiquidity:       0.05,
				features.FeatureConcentration:   0.15,
				features.FeatureDiversification: 0.15,
				features.FeatureFundAge:         0.05,
			},
		},
	}
}

// Load resolves the configuration in three layers: built-in defaults,
// then the YAML file (when path is non-empty or a default location
// exists), then environment variables. Validation failures abort
// before any data is read.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks structural constraints, then the cross-field rules
// the struct tags cannot express: percentile ordering, window ordering,
// per-profile weight sums, and guardrail parameters.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Run.LowerPercentile >= c.Run.UpperPercentile {
		return fmt.Errorf("lower percentile %.3f must be below upper percentile %.3f",
			c.Run.LowerPercentile, c.Run.UpperPercentile)
	}
	if c.Run.Window3M >= c.Run.Window12M {
		return fmt.Errorf("short window %d must be below long window %d",
			c.Run.Window3M, c.Run.Window12M)
	}

	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}
	seen := make(map[string]struct{}, len(c.Profiles))
	for _, p := range c.Profiles {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("profile %s: defined twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		if err := p.Validate(); err != nil {
			return err
		}
	}

	if _, err := c.Guardrails.Rules(); err != nil {
		return err
	}

	if _, err := c.Run.AsOfDate(); err != nil {
		return err
	}
	return nil
}

func findConfigFile() string {
	for _, location := range []string{"fundrank.yaml", "configs/fundrank.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}
