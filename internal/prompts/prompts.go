// Package prompts manages the vendor extraction prompts.
//
// Embedded .tmpl files are the source of truth for defaults. A registry
// configured with an override directory lets operators drop in a
// <vendor>.tmpl file to replace a prompt without rebuilding; resolution
// order is override file, then embedded default.
package prompts

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/beverage-tools/invparse/internal/invoice"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Registry resolves the extraction prompt for a vendor.
type Registry struct {
	overrideDir string
	logger      *slog.Logger
}

// NewRegistry creates a registry. overrideDir may be empty, in which case
// only the embedded defaults are served.
func NewRegistry(overrideDir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{overrideDir: overrideDir, logger: logger}
}

// Get returns the prompt text for a vendor. An override file named
// <vendor>.tmpl in the override directory wins over the embedded default.
func (r *Registry) Get(vendor invoice.Vendor) (string, error) {
	if r.overrideDir != "" {
		path := filepath.Join(r.overrideDir, string(vendor)+".tmpl")
		if raw, err := os.ReadFile(path); err == nil {
			text := strings.TrimSpace(string(raw))
			if text != "" {
				r.logger.Debug("using prompt override", "vendor", vendor, "path", path)
				return text, nil
			}
		}
	}
	return Embedded(vendor)
}

// Hash returns the SHA256 of the resolved prompt, used to record which
// prompt version produced a given extraction.
func (r *Registry) Hash(vendor invoice.Vendor) (string, error) {
	text, err := r.Get(vendor)
	if err != nil {
		return "", err
	}
	return HashText(text), nil
}

// Embedded returns the compiled-in default prompt for a vendor.
func Embedded(vendor invoice.Vendor) (string, error) {
	raw, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.tmpl", vendor))
	if err != nil {
		return "", fmt.Errorf("no prompt registered for vendor %s", vendor)
	}
	return strings.TrimSpace(string(raw)), nil
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
