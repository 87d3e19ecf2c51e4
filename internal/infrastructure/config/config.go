package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Fraud     FraudConfig     `koanf:"fraud"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL        string        `koanf:"url"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	ProfileTTL time.Duration `koanf:"profile_ttl"`
}

// FraudConfig carries the scoring engine tunables. Amounts are integer
// minor units, matching the wire and storage representation.
type FraudConfig struct {
	HomeCountry         string        `koanf:"home_country"`
	HighValueMinorUnits int64         `koanf:"high_value_minor_units"`
	LowValueMinorUnits  int64         `koanf:"low_value_minor_units"`
	AlertScoreThreshold int           `koanf:"alert_score_threshold"`
	PatternRefresh      time.Duration `koanf:"pattern_refresh"`
	AlertBuffer         int           `koanf:"alert_buffer"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SampleRate   float64 `koanf:"sample_rate"`
	Enabled      bool    `koanf:"enabled"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:         0,
			ProfileTTL: 5 * time.Minute,
		},
		Fraud: FraudConfig{
			HomeCountry:         "US",
			HighValueMinorUnits: 50_000,
			LowValueMinorUnits:  2_000,
			AlertScoreThreshold: 80,
			PatternRefresh:      5 * time.Minute,
			AlertBuffer:         256,
		},
		Telemetry: TelemetryConfig{
			SampleRate: 0.1,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional; environment variables win over it.
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("FRE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FRE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Fraud.LowValueMinorUnits > c.Fraud.HighValueMinorUnits {
		return fmt.Errorf("fraud.low_value_minor_units (%d) exceeds fraud.high_value_minor_units (%d)",
			c.Fraud.LowValueMinorUnits, c.Fraud.HighValueMinorUnits)
	}
	if c.Fraud.AlertScoreThreshold < 0 || c.Fraud.AlertScoreThreshold > 100 {
		return fmt.Errorf("fraud.alert_score_threshold must be in [0,100], got %d", c.Fraud.AlertScoreThreshold)
	}
	return nil
}

// IsProduction reports whether the process runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
