// Package config gathers every tunable of the report pipeline into one
// validated structure. Defaults reflect the published upstream quotas and
// the batch sizes the pipeline is operated with.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the root configuration.
type Config struct {
	Credentials CredentialsConfig `mapstructure:"credentials" validate:"required"`
	Generation  GenerationConfig  `mapstructure:"generation" validate:"required"`
	Batch       BatchConfig       `mapstructure:"batch" validate:"required"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
}

// CredentialsConfig lists the API credentials in acquisition priority order.
type CredentialsConfig struct {
	// APIKeys are scanned first, in order.
	APIKeys []string `mapstructure:"api_keys"`

	// ServiceAccountToken, when set, is the last-resort credential.
	ServiceAccountToken string `mapstructure:"service_account_token"`

	// RateLimitCooldown applies when a rate-limit release carries no
	// server-provided delay.
	RateLimitCooldown time.Duration `mapstructure:"rate_limit_cooldown" validate:"min=1s"`

	// ExhaustionThreshold is the consecutive-empty-acquire count after
	// which the pool is considered dead.
	ExhaustionThreshold int `mapstructure:"exhaustion_threshold" validate:"min=1"`
}

// GenerationConfig shapes the per-student comment generation loop.
type GenerationConfig struct {
	Model            string        `mapstructure:"model" validate:"required"`
	Temperature      float64       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxAttempts      int           `mapstructure:"max_attempts" validate:"min=1"`
	EmptyPoolBackoff time.Duration `mapstructure:"empty_pool_backoff" validate:"min=1s"`
	TransientDelay   time.Duration `mapstructure:"transient_delay" validate:"min=1s"`
	AttemptTimeout   time.Duration `mapstructure:"attempt_timeout" validate:"min=1s"`

	// PromptTemplate overrides the embedded prompt when non-empty.
	PromptTemplate string `mapstructure:"prompt_template"`
}

// BatchConfig shapes the batch orchestrator.
type BatchConfig struct {
	Workers  int           `mapstructure:"workers" validate:"min=1"`
	Deadline time.Duration `mapstructure:"deadline" validate:"min=1m"`
}

// ScoringConfig selects scoring semantics.
type ScoringConfig struct {
	// BlankPolicy is "wrong" or "skipped".
	BlankPolicy string `mapstructure:"blank_policy" validate:"oneof=wrong skipped"`
}

// StoreConfig points at the run database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig enables the shared quota window when Addr is set.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"min=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LogConfig shapes the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// DefaultConfig returns production defaults. Credentials must still be
// supplied by the operator.
func DefaultConfig() Config {
	return Config{
		Credentials: CredentialsConfig{
			RateLimitCooldown:   60 * time.Second,
			ExhaustionThreshold: 10,
		},
		Generation: GenerationConfig{
			Model:            "gemini-2.0-flash",
			Temperature:      0.7,
			MaxAttempts:      30,
			EmptyPoolBackoff: 10 * time.Second,
			TransientDelay:   2 * time.Second,
			AttemptTimeout:   90 * time.Second,
		},
		Batch: BatchConfig{
			Workers:  8,
			Deadline: 40 * time.Minute,
		},
		Scoring: ScoringConfig{
			BlankPolicy: "wrong",
		},
		Store: StoreConfig{
			Path: "reportgen.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks structural validity. Credential presence is checked
// separately because read-only commands run without credentials.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// ValidateCredentials checks that at least one credential is configured.
// Commands that call the generation API require this on top of Validate.
func (c *Config) ValidateCredentials() error {
	if len(c.Credentials.APIKeys) == 0 && c.Credentials.ServiceAccountToken == "" {
		return fmt.Errorf("config validation: at least one API key or a service account token is required")
	}
	return nil
}
