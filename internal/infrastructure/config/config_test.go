package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "US", cfg.Fraud.HomeCountry)
	assert.Equal(t, int64(50_000), cfg.Fraud.HighValueMinorUnits)
	assert.Equal(t, int64(2_000), cfg.Fraud.LowValueMinorUnits)
	assert.Equal(t, 80, cfg.Fraud.AlertScoreThreshold)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("FRE_ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.True(t, cfg.IsProduction())
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{
		Fraud: FraudConfig{
			HomeCountry:         "US",
			HighValueMinorUnits: 1_000,
			LowValueMinorUnits:  5_000,
			AlertScoreThreshold: 80,
		},
	}
	assert.Error(t, cfg.validate())

	cfg.Fraud.LowValueMinorUnits = 500
	assert.NoError(t, cfg.validate())

	cfg.Fraud.AlertScoreThreshold = 101
	assert.Error(t, cfg.validate())
}
