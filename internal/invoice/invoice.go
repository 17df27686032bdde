// Package invoice defines the canonical invoice data model shared by the
// parsing, validation, and output layers, plus the per-file error taxonomy.
package invoice

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Output JSON carries amounts as plain numbers, matching the artifact
	// format consumers already ingest.
	decimal.MarshalJSONWithoutQuotes = true
}

// Record is the canonical output entity for one parsed invoice.
// Field order here is the serialization order of the JSON artifact.
type Record struct {
	VendorName    string          `json:"vendor_name"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"` // normalized YYYY-MM-DD, empty if unparseable
	Items         []LineItem      `json:"items"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	Meta          ExtractionMeta  `json:"meta"`
}

// LineItem is a single row of the invoice's items table, in source order.
type LineItem struct {
	Description    string          `json:"description"`
	Qty            decimal.Decimal `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	ExtendedAmount decimal.Decimal `json:"extended_amount"`

	// Vendor-specific optionals.
	ItemNumber string           `json:"item_number,omitempty"`
	UPC        string           `json:"upc,omitempty"`
	Size       string           `json:"size,omitempty"`
	Discount   *decimal.Decimal `json:"discount,omitempty"`
	Deposit    *decimal.Decimal `json:"deposit,omitempty"`
}

// ExtractionMeta is informational only; it is never checked against
// business rules.
type ExtractionMeta struct {
	SourceFile      string   `json:"source_file"`
	VendorDetected  string   `json:"vendor_detected"`
	ParseConfidence float64  `json:"parse_confidence"`
	ValidationFlags []string `json:"validation_flags"`
}

// ItemsTotal returns the sum of extended amounts across all line items.
func (r *Record) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.ExtendedAmount)
	}
	return sum
}

// Flagged reports whether validation raised any flags.
func (r *Record) Flagged() bool {
	return len(r.Meta.ValidationFlags) > 0
}
