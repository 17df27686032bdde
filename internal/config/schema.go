package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the full invparse configuration.
type Config struct {
	OpenAI     OpenAIConfig     `mapstructure:"openai" yaml:"openai"`
	Files      FilesConfig      `mapstructure:"files" yaml:"files"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
}

// OpenAIConfig holds the vision API settings.
type OpenAIConfig struct {
	// APIKey may use ${ENV_VAR} syntax to reference an environment variable.
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`
	Model             string  `mapstructure:"model" yaml:"model"`
	MaxTokens         int64   `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

// FilesConfig holds input file limits.
type FilesConfig struct {
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
}

// OutputConfig holds result writing settings.
type OutputConfig struct {
	// Dir overrides the default <home>/output directory when set.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ValidationConfig holds business-rule settings.
type ValidationConfig struct {
	// Tolerance is a decimal string so one cent stays exactly one cent.
	Tolerance           string   `mapstructure:"tolerance" yaml:"tolerance"`
	ConfidenceThreshold float64  `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	DateFormats         []string `mapstructure:"date_formats" yaml:"date_formats"`
}

// Timeout returns the configured HTTP timeout.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the configured base retry delay.
func (c OpenAIConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// ToleranceDecimal parses the tolerance string.
func (c ValidationConfig) ToleranceDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Tolerance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid validation.tolerance %q: %w", c.Tolerance, err)
	}
	return d, nil
}
