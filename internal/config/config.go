// Package config handles loading the invparse configuration from YAML,
// environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Manager loads and serves configuration.
type Manager struct {
	v      *viper.Viper
	config *Config
}

// NewManager loads configuration from the given file (optional), the
// environment (INVPARSE_ prefix), and the defaults, in that order of
// precedence. A .env file in the working directory is loaded first so
// ${ENV_VAR} references resolve in local setups.
func NewManager(cfgFile string) (*Manager, error) {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	cm := &Manager{v: viper.New()}
	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cm.config = &cfg

	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	// Leaf-level defaults so a config file overriding part of a section
	// keeps the rest of it.
	d := DefaultConfig()
	cm.v.SetDefault("openai.api_key", d.OpenAI.APIKey)
	cm.v.SetDefault("openai.model", d.OpenAI.Model)
	cm.v.SetDefault("openai.max_tokens", d.OpenAI.MaxTokens)
	cm.v.SetDefault("openai.temperature", d.OpenAI.Temperature)
	cm.v.SetDefault("openai.timeout_seconds", d.OpenAI.TimeoutSeconds)
	cm.v.SetDefault("openai.max_retries", d.OpenAI.MaxRetries)
	cm.v.SetDefault("openai.retry_delay_seconds", d.OpenAI.RetryDelaySeconds)
	cm.v.SetDefault("files.max_size_mb", d.Files.MaxSizeMB)
	cm.v.SetDefault("output.dir", d.Output.Dir)
	cm.v.SetDefault("validation.tolerance", d.Validation.Tolerance)
	cm.v.SetDefault("validation.confidence_threshold", d.Validation.ConfidenceThreshold)
	cm.v.SetDefault("validation.date_formats", d.Validation.DateFormats)

	// Environment variables with INVPARSE_ prefix, e.g.
	// INVPARSE_OPENAI_MODEL overrides openai.model.
	cm.v.SetEnvPrefix("INVPARSE")
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.invparse")
	}

	// Config file is optional; only a malformed one is an error.
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// Get returns the loaded configuration.
func (cm *Manager) Get() *Config {
	return cm.config
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ResolvedAPIKey returns the OpenAI API key with ${ENV_VAR} references
// expanded.
func (c *Config) ResolvedAPIKey() string {
	return ResolveEnvVars(c.OpenAI.APIKey)
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# invparse configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
