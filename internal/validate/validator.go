// Package validate turns an untrusted candidate record into a well-typed,
// internally consistent invoice record. Structural problems are fatal;
// arithmetic and format problems become flags on an otherwise usable
// record, so an imperfect extraction still yields a reviewable artifact.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/beverage-tools/invparse/internal/invoice"
	"github.com/beverage-tools/invparse/internal/parse"
)

// DefaultTolerance is the maximum absolute difference between two amounts
// before they count as mismatched: one cent.
var DefaultTolerance = decimal.RequireFromString("0.01")

// DefaultDateFormats is the accepted date format list, in preference
// order. Month-first layouts come before day-first: these are US invoices.
var DefaultDateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	"2006/01/02",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

const baseConfidence = 0.95

// Options configures a Validator. Zero values fall back to the defaults.
type Options struct {
	Tolerance   decimal.Decimal
	DateFormats []string
}

// Validator checks candidate records against a structural schema and the
// vendor's business rules. It holds no per-file state; Validate is a pure
// function of (candidate, vendor) and may be reused across files.
type Validator struct {
	tolerance   decimal.Decimal
	dateFormats []string
	schemas     *schemaRegistry
}

// New compiles the embedded vendor schemas and returns a Validator.
func New(opts Options) (*Validator, error) {
	tol := opts.Tolerance
	if tol.IsZero() {
		tol = DefaultTolerance
	}
	formats := opts.DateFormats
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}

	schemas, err := newSchemaRegistry()
	if err != nil {
		return nil, err
	}

	return &Validator{
		tolerance:   tol,
		dateFormats: formats,
		schemas:     schemas,
	}, nil
}

// Validate runs the three tiers against a candidate and returns the
// finalized record plus every flag raised. Only missing required fields or
// fundamentally wrong types produce an error; everything else is a flag.
func (v *Validator) Validate(c parse.Candidate, vendor invoice.Vendor) (*invoice.Record, []string, error) {
	if c == nil {
		return nil, nil, &invoice.SchemaViolationError{Vendor: vendor, Detail: "candidate is not an object"}
	}

	rules := rulesFor(vendor)
	doc := applySynonyms(c, rules.recordSynonyms)

	// Tier 1: structural. A failure here is fatal; there is nothing to
	// repair when vendor_name or items are absent or mistyped.
	if err := v.schemas.check(vendor, doc); err != nil {
		return nil, nil, &invoice.SchemaViolationError{Vendor: vendor, Detail: err.Error()}
	}

	var flags []string
	rec := &invoice.Record{}

	// Tier 2: per-field normalization of the top-level record.
	rec.VendorName = v.vendorName(doc, vendor, &flags)
	rec.InvoiceNumber = v.invoiceNumber(doc, &flags)
	rec.InvoiceDate = v.invoiceDate(doc, &flags)
	rec.TotalSales = v.totalSales(doc, &flags)

	// Tiers 2+3 per line item, then cross-item reconciliation.
	rec.Items = v.lineItems(doc, rules, &flags)
	v.reconcileTotal(rec, &flags)

	rec.Meta = invoice.ExtractionMeta{
		VendorDetected:  string(vendor),
		ParseConfidence: v.confidence(doc, len(flags)),
		ValidationFlags: flags,
	}
	if rec.Meta.ValidationFlags == nil {
		rec.Meta.ValidationFlags = []string{}
	}

	return rec, rec.Meta.ValidationFlags, nil
}

// Tolerance returns the configured mismatch tolerance.
func (v *Validator) Tolerance() decimal.Decimal { return v.tolerance }

func (v *Validator) vendorName(doc map[string]any, vendor invoice.Vendor, flags *[]string) string {
	raw, _ := stringField(doc["vendor_name"])
	canonical := vendor.DisplayName()
	if raw != canonical {
		*flags = append(*flags, fmt.Sprintf("vendor_name: normalized from %q", raw))
	}
	return canonical
}

func (v *Validator) invoiceNumber(doc map[string]any, flags *[]string) string {
	s, ok := stringField(doc["invoice_number"])
	if !ok || s == "" {
		*flags = append(*flags, "invoice_number missing")
		return ""
	}
	return s
}

func (v *Validator) invoiceDate(doc map[string]any, flags *[]string) string {
	s, ok := stringField(doc["invoice_date"])
	if !ok || s == "" {
		*flags = append(*flags, "invoice_date missing")
		return ""
	}
	normalized, ok := normalizeDate(s, v.dateFormats)
	if !ok {
		*flags = append(*flags, fmt.Sprintf("invoice_date: unparseable value %q", s))
		return ""
	}
	return normalized
}

func (v *Validator) totalSales(doc map[string]any, flags *[]string) decimal.Decimal {
	d, present, err := decimalField(doc["total_sales"])
	switch {
	case !present:
		*flags = append(*flags, "total_sales missing, treated as zero")
		return decimal.Zero
	case err != nil:
		*flags = append(*flags, fmt.Sprintf("total_sales: uncoercible value %v", doc["total_sales"]))
		return decimal.Zero
	case d.IsNegative():
		*flags = append(*flags, "total_sales negative")
		return d
	default:
		return d
	}
}

func (v *Validator) lineItems(doc map[string]any, rules ruleSet, flags *[]string) []invoice.LineItem {
	rawItems, _ := doc["items"].([]any) // guaranteed an array by tier 1
	items := make([]invoice.LineItem, 0, len(rawItems))

	for i, raw := range rawItems {
		m, ok := raw.(map[string]any)
		if !ok {
			*flags = append(*flags, fmt.Sprintf("line_item[%d]: not an object, skipped", i))
			continue
		}
		items = append(items, v.lineItem(applySynonyms(m, rules.itemSynonyms), rules, i, flags))
	}

	if len(items) == 0 {
		*flags = append(*flags, "no line items detected")
	}
	return items
}

func (v *Validator) lineItem(m map[string]any, rules ruleSet, idx int, flags *[]string) invoice.LineItem {
	flag := func(format string, args ...any) {
		*flags = append(*flags, fmt.Sprintf("line_item[%d]: ", idx)+fmt.Sprintf(format, args...))
	}

	var item invoice.LineItem

	desc, ok := stringField(m["description"])
	if !ok || desc == "" {
		flag("description missing")
	}
	item.Description = desc

	qty, qtyKnown, qtyAbsent := v.itemAmount(m, "qty", flag)
	unit, unitKnown, unitAbsent := v.itemAmount(m, "unit_price", flag)
	ext, extKnown, extAbsent := v.itemAmount(m, "extended_amount", flag)

	// Repair what arithmetic allows, flagging every computed value.
	switch {
	case !extKnown && qtyKnown && unitKnown:
		ext = qty.Mul(unit)
		extKnown = true
		flag("extended_amount computed")
	case !unitKnown && qtyKnown && extKnown && qty.IsPositive():
		unit = ext.DivRound(qty, 4)
		unitKnown = true
		flag("unit_price computed")
	}

	// Whatever arithmetic could not repair is zeroed and flagged rather
	// than failing the record.
	if !qtyKnown && qtyAbsent {
		flag("qty missing, treated as zero")
	}
	if !unitKnown && unitAbsent {
		flag("unit_price missing, treated as zero")
	}
	if !extKnown && extAbsent {
		flag("extended_amount missing, treated as zero")
	}

	if qtyKnown && !qty.IsPositive() {
		flag("qty must be positive, got %s", qty)
	}
	if unitKnown && unit.IsNegative() {
		flag("unit_price negative, got %s", unit)
	}

	// Reconciliation only fires when all three operands are usable.
	if qtyKnown && unitKnown && extKnown {
		diff := ext.Sub(qty.Mul(unit)).Abs()
		if diff.GreaterThan(v.tolerance) {
			flag("extended_amount mismatch")
		}
	}

	item.Qty = qty
	item.UnitPrice = unit
	item.ExtendedAmount = ext

	// Vendor-specific optionals, format-checked but never rejected.
	if s, ok := stringField(m["item_number"]); ok {
		item.ItemNumber = s
		if rules.itemNumberPattern != nil && !rules.itemNumberPattern.MatchString(s) {
			flag("item_number format: %q", s)
		}
	}
	if s, ok := stringField(m["upc"]); ok {
		cleaned := digitsOnly(s)
		item.UPC = cleaned
		if len(rules.upcLengths) > 0 && !rules.validUPCLength(len(cleaned)) {
			flag("invalid upc format: %q", s)
		}
	}
	if s, ok := stringField(m["size"]); ok {
		item.Size = s
	}
	if d, present, err := decimalField(m["discount"]); present {
		if err != nil {
			flag("discount: uncoercible value %v", m["discount"])
		} else {
			item.Discount = &d
		}
	}
	if d, present, err := decimalField(m["deposit"]); present {
		if err != nil {
			flag("deposit: uncoercible value %v", m["deposit"])
		} else {
			item.Deposit = &d
		}
	}

	return item
}

// itemAmount coerces one numeric line-item field. known reports whether a
// usable value came out; absent distinguishes a missing field from an
// uncoercible one, which is flagged here.
func (v *Validator) itemAmount(m map[string]any, field string, flag func(string, ...any)) (d decimal.Decimal, known, absent bool) {
	d, present, err := decimalField(m[field])
	if !present {
		return decimal.Zero, false, true
	}
	if err != nil {
		flag("%s: uncoercible value %v", field, m[field])
		return decimal.Zero, false, false
	}
	return d, true, false
}

func (v *Validator) reconcileTotal(rec *invoice.Record, flags *[]string) {
	if len(rec.Items) == 0 {
		return
	}
	diff := rec.TotalSales.Sub(rec.ItemsTotal()).Abs()
	if diff.GreaterThan(v.tolerance) {
		*flags = append(*flags, "total_sales mismatch")
	}
}

// confidence derives the heuristic parse score: a fixed base minus a step
// per flag, floored, with a model-supplied score honored only as an
// advisory ceiling.
func (v *Validator) confidence(doc map[string]any, flagCount int) float64 {
	score := baseConfidence - 0.05*float64(flagCount)
	if score < 0.1 {
		score = 0.1
	}
	if advisory, ok := doc["confidence"].(float64); ok && advisory >= 0 && advisory <= 1 && advisory < score {
		score = advisory
	}
	return score
}
