package config

import "github.com/beverage-tools/invparse/internal/validate"

// DefaultConfig returns the built-in defaults, also used to seed the
// config file written by `invparse init`.
func DefaultConfig() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			APIKey:            "${OPENAI_API_KEY}",
			Model:             "gpt-4o",
			MaxTokens:         16384,
			Temperature:       0.0,
			TimeoutSeconds:    120,
			MaxRetries:        3,
			RetryDelaySeconds: 2,
		},
		Files: FilesConfig{
			MaxSizeMB: 20,
		},
		Output: OutputConfig{
			Dir: "",
		},
		Validation: ValidationConfig{
			Tolerance:           "0.01",
			ConfidenceThreshold: 0.85,
			DateFormats:         validate.DefaultDateFormats,
		},
	}
}
