package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Credentials.APIKeys = []string{"k1"}
	return cfg
}

func TestDefaultConfigIsValidWithCredentials(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ValidateCredentials())
}

func TestValidateCredentials(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	err := cfg.ValidateCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")

	cfg.Credentials.ServiceAccountToken = "sa"
	assert.NoError(t, cfg.ValidateCredentials())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Generation.MaxAttempts = 0 }},
		{"bad blank policy", func(c *Config) { c.Scoring.BlankPolicy = "maybe" }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"sub-second cooldown", func(c *Config) { c.Credentials.RateLimitCooldown = 100 * time.Millisecond }},
		{"short deadline", func(c *Config) { c.Batch.Deadline = 10 * time.Second }},
		{"temperature out of range", func(c *Config) { c.Generation.Temperature = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
