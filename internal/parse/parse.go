// Package parse turns raw model response text into a loosely-typed
// candidate record. It tolerates markdown fences and surrounding prose but
// performs no type coercion; that belongs to the validator.
package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/beverage-tools/invparse/internal/invoice"
)

// Candidate is the untyped structure decoded from the model's response,
// prior to validation.
type Candidate map[string]any

// Parse decodes raw response text into a Candidate. It tries the text
// as-is, then with code fences stripped, then falls back once to the first
// balanced JSON object substring. Anything else is a MalformedResponseError.
func Parse(raw string) (Candidate, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &invoice.MalformedResponseError{
			Snippet: "",
			Err:     fmt.Errorf("empty response"),
		}
	}

	candidates := []string{trimmed}
	if stripped := stripCodeFences(trimmed); stripped != "" && stripped != trimmed {
		candidates = append(candidates, stripped)
	}
	if extracted := extractObject(trimmed); extracted != "" && extracted != trimmed {
		candidates = append(candidates, extracted)
	}

	var lastErr error
	seen := make(map[string]struct{}, len(candidates))
	for _, text := range candidates {
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}

		var c Candidate
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			lastErr = err
			continue
		}
		return c, nil
	}

	return nil, &invoice.MalformedResponseError{
		Snippet: snippet(trimmed),
		Err:     lastErr,
	}
}

// stripCodeFences removes a surrounding markdown fence block, including a
// language tag on the opening fence.
func stripCodeFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractObject returns the first balanced top-level JSON object in the
// text, respecting string literals and escapes. Empty string if none.
func extractObject(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
			// skip structural chars inside strings
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

func snippet(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
