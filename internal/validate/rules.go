package validate

import (
	"regexp"

	"github.com/beverage-tools/invparse/internal/invoice"
)

// ruleSet captures the per-vendor business-rule variation: which raw field
// names map onto the canonical model, and which identifier formats apply.
// Vendors are values in a map, not a type hierarchy.
type ruleSet struct {
	// recordSynonyms renames top-level candidate keys to canonical ones
	// before coercion (e.g. breakthru reports gross_total, not total_sales).
	recordSynonyms map[string]string

	// itemSynonyms renames line-item keys to canonical ones.
	itemSynonyms map[string]string

	// upcLengths lists the accepted digit counts for the upc field.
	// Empty means the vendor does not print UPCs.
	upcLengths []int

	// itemNumberPattern, when set, is checked against item_number.
	itemNumberPattern *regexp.Regexp
}

var breakthruItemNumber = regexp.MustCompile(`^\d{7}$`)

var vendorRules = map[invoice.Vendor]ruleSet{
	invoice.VendorLakeshore: {
		upcLengths: []int{8, 12},
	},
	invoice.VendorBreakthru: {
		recordSynonyms: map[string]string{
			"gross_total": "total_sales",
		},
		itemSynonyms: map[string]string{
			"Description": "description",
			"Case":        "qty",
			"cs_net":      "unit_price",
			"ext_w_o_tax": "extended_amount",
			"Item":        "item_number",
			"Size":        "size",
		},
		itemNumberPattern: breakthruItemNumber,
	},
	invoice.VendorSouthernGlazers: {
		recordSynonyms: map[string]string{
			"gross_total":     "total_sales",
			"pay_this_amount": "total_sales",
		},
		itemSynonyms: map[string]string{
			"cases":        "qty",
			"net_amount":   "extended_amount",
			"product_code": "item_number",
		},
		upcLengths: []int{8, 12},
	},
}

// rulesFor returns the vendor's rule set; unknown vendors get an empty one.
func rulesFor(vendor invoice.Vendor) ruleSet {
	return vendorRules[vendor]
}

// applySynonyms returns a copy of m with the rule set's renames applied.
// An existing canonical key always wins over a synonym.
func applySynonyms(m map[string]any, synonyms map[string]string) map[string]any {
	if len(synonyms) == 0 {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for from, to := range synonyms {
		v, ok := out[from]
		if !ok {
			continue
		}
		if _, exists := out[to]; !exists && !isAbsent(v) {
			out[to] = v
		}
		delete(out, from)
	}
	return out
}

func (rs ruleSet) validUPCLength(n int) bool {
	for _, l := range rs.upcLengths {
		if n == l {
			return true
		}
	}
	return false
}
