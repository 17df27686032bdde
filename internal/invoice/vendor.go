package invoice

import (
	"fmt"
	"strings"
)

// Vendor identifies which prompt template and business-rule set apply.
type Vendor string

const (
	VendorLakeshore       Vendor = "lakeshore"
	VendorBreakthru       Vendor = "breakthru"
	VendorSouthernGlazers Vendor = "southern_glazers"
	VendorUnknown         Vendor = "unknown"
)

// vendorDisplayNames maps a vendor key to the name printed on its invoices.
var vendorDisplayNames = map[Vendor]string{
	VendorLakeshore:       "Lakeshore Beverage",
	VendorBreakthru:       "Breakthru Beverage Illinois",
	VendorSouthernGlazers: "Southern Glazer's of IL",
}

// Vendors returns all supported vendor keys in a stable order.
func Vendors() []Vendor {
	return []Vendor{VendorLakeshore, VendorBreakthru, VendorSouthernGlazers}
}

// ParseVendor validates a vendor key from user input.
func ParseVendor(s string) (Vendor, error) {
	v := Vendor(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := vendorDisplayNames[v]; !ok {
		return VendorUnknown, fmt.Errorf("unsupported vendor %q (supported: %s)", s, strings.Join(vendorKeys(), ", "))
	}
	return v, nil
}

// DisplayName returns the canonical vendor name for the output record.
func (v Vendor) DisplayName() string {
	if name, ok := vendorDisplayNames[v]; ok {
		return name
	}
	return string(VendorUnknown)
}

func (v Vendor) String() string { return string(v) }

func vendorKeys() []string {
	keys := make([]string, 0, len(vendorDisplayNames))
	for _, v := range Vendors() {
		keys = append(keys, string(v))
	}
	return keys
}
