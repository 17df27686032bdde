package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewManager_Defaults(t *testing.T) {
	// A missing config file is fine; defaults apply.
	cm, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	cfg := cm.Get()
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("Model = %q", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.MaxTokens != 16384 {
		t.Errorf("MaxTokens = %d", cfg.OpenAI.MaxTokens)
	}
	if cfg.Files.MaxSizeMB != 20 {
		t.Errorf("MaxSizeMB = %d", cfg.Files.MaxSizeMB)
	}
	if cfg.Validation.Tolerance != "0.01" {
		t.Errorf("Tolerance = %q", cfg.Validation.Tolerance)
	}
	if len(cfg.Validation.DateFormats) == 0 {
		t.Error("DateFormats is empty")
	}
}

func TestNewManager_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
openai:
  model: gpt-4o-mini
  max_tokens: 4096
validation:
  tolerance: "0.05"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	cfg := cm.Get()
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d", cfg.OpenAI.MaxTokens)
	}
	if cfg.Validation.Tolerance != "0.05" {
		t.Errorf("Tolerance = %q", cfg.Validation.Tolerance)
	}
	// Untouched sections keep their defaults.
	if cfg.Files.MaxSizeMB != 20 {
		t.Errorf("MaxSizeMB = %d", cfg.Files.MaxSizeMB)
	}
	// Untouched keys inside an overridden section do too.
	if cfg.OpenAI.TimeoutSeconds != 120 {
		t.Errorf("TimeoutSeconds = %d", cfg.OpenAI.TimeoutSeconds)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("INVPARSE_TEST_KEY", "sk-secret")

	tests := []struct {
		in   string
		want string
	}{
		{"${INVPARSE_TEST_KEY}", "sk-secret"},
		{"prefix-${INVPARSE_TEST_KEY}", "prefix-sk-secret"},
		{"no-vars", "no-vars"},
		{"", ""},
		{"${INVPARSE_UNSET_VAR}", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolvedAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-live")
	cfg := DefaultConfig()
	if got := cfg.ResolvedAPIKey(); got != "sk-live" {
		t.Errorf("ResolvedAPIKey() = %q", got)
	}
}

func TestToleranceDecimal(t *testing.T) {
	cfg := DefaultConfig()
	d, err := cfg.Validation.ToleranceDecimal()
	if err != nil {
		t.Fatalf("ToleranceDecimal() error = %v", err)
	}
	if !d.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("tolerance = %s", d)
	}

	bad := ValidationConfig{Tolerance: "a penny"}
	if _, err := bad.ToleranceDecimal(); err == nil {
		t.Error("expected error for unparseable tolerance")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "# invparse configuration") {
		t.Error("missing header comment")
	}
	if !strings.Contains(string(raw), "${OPENAI_API_KEY}") {
		t.Error("api key placeholder missing")
	}

	// The written file round-trips through the manager.
	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() on written default error = %v", err)
	}
	if cm.Get().OpenAI.Model != "gpt-4o" {
		t.Errorf("Model = %q", cm.Get().OpenAI.Model)
	}
}
