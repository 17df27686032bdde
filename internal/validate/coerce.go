package validate

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// The vendor prompts instruct the model to emit the literal string "None"
// for absent fields, so it counts as absent everywhere.
func isAbsent(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || strings.EqualFold(s, "none") || strings.EqualFold(s, "null")
	default:
		return false
	}
}

// stringField returns a trimmed string value, reporting absence for nil,
// empty, and "None" sentinels. Numeric values are stringified, since the
// model sometimes emits identifiers like invoice numbers as bare numbers.
func stringField(v any) (string, bool) {
	if isAbsent(v) {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

// decimalField coerces a candidate value to a decimal. Strings are cleaned
// of currency symbols and thousands separators first. The second return
// distinguishes "absent" from "present"; the error reports uncoercible
// present values.
func decimalField(v any) (decimal.Decimal, bool, error) {
	if isAbsent(v) {
		return decimal.Zero, false, nil
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true, nil
	case int:
		return decimal.NewFromInt(int64(t)), true, nil
	case int64:
		return decimal.NewFromInt(t), true, nil
	case string:
		d, err := decimal.NewFromString(cleanAmount(t))
		if err != nil {
			return decimal.Zero, true, err
		}
		return d, true, nil
	default:
		d, err := decimal.NewFromString(cleanAmount(strings.TrimSpace(stringify(v))))
		if err != nil {
			return decimal.Zero, true, err
		}
		return d, true, nil
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// cleanAmount strips currency symbols, thousands separators, and
// whitespace, and converts accounting-style parentheses to a leading minus.
func cleanAmount(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	replacer := strings.NewReplacer("$", "", ",", "", " ", "")
	return replacer.Replace(s)
}

// normalizeDate parses s against the ordered format list and returns the
// date in YYYY-MM-DD form. The first matching format wins; no further
// disambiguation is attempted.
func normalizeDate(s string, formats []string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// digitsOnly strips everything but ASCII digits, the normalization applied
// to UPC and barcode style identifiers.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
