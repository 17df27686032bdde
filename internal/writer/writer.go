// Package writer persists finalized invoice records. JSON is the primary
// output, one file per invoice; Excel is a batch-level export with
// summary, item, and validation views.
package writer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/beverage-tools/invparse/internal/invoice"
)

// Writer writes extraction results into an output directory.
type Writer struct {
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Writer.
func New(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger, now: time.Now}
}

// WriteJSON writes one record as indented JSON and returns the path. File
// names carry the vendor, source stem, and a timestamp; an existing file
// is never overwritten, collisions get a numeric suffix.
func (w *Writer) WriteJSON(rec *invoice.Record, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	base := fmt.Sprintf("invoice_%s_%s_%s",
		rec.Meta.VendorDetected, sourceStem(rec.Meta.SourceFile), w.now().Format("20060102_150405"))
	path, err := w.reserve(outDir, base, ".json")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}

	w.logger.Debug("wrote invoice record", "path", path, "flags", len(rec.Meta.ValidationFlags))
	return path, nil
}

// WriteExcel writes a batch of records as one workbook with Summary,
// Items, and Validation sheets and returns the path.
func (w *Writer) WriteExcel(recs []*invoice.Record, outDir string, vendor invoice.Vendor) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return "", err
	}
	if _, err := f.NewSheet("Items"); err != nil {
		return "", err
	}
	if _, err := f.NewSheet("Validation"); err != nil {
		return "", err
	}

	setRow(f, summary, 1, []any{
		"Source File", "Invoice Number", "Invoice Date", "Total Sales",
		"Items", "Flags", "Confidence",
	})
	for i, rec := range recs {
		setRow(f, summary, i+2, []any{
			rec.Meta.SourceFile,
			rec.InvoiceNumber,
			rec.InvoiceDate,
			rec.TotalSales.StringFixed(2),
			len(rec.Items),
			len(rec.Meta.ValidationFlags),
			rec.Meta.ParseConfidence,
		})
	}

	setRow(f, "Items", 1, []any{
		"Invoice Number", "Description", "Qty", "Unit Price",
		"Extended Amount", "Item Number", "UPC", "Size",
	})
	itemRow := 2
	for _, rec := range recs {
		for _, item := range rec.Items {
			setRow(f, "Items", itemRow, []any{
				rec.InvoiceNumber,
				item.Description,
				item.Qty.String(),
				item.UnitPrice.StringFixed(2),
				item.ExtendedAmount.StringFixed(2),
				item.ItemNumber,
				item.UPC,
				item.Size,
			})
			itemRow++
		}
	}

	setRow(f, "Validation", 1, []any{"Invoice Number", "Source File", "Flag"})
	flagRow := 2
	for _, rec := range recs {
		for _, fl := range rec.Meta.ValidationFlags {
			setRow(f, "Validation", flagRow, []any{rec.InvoiceNumber, rec.Meta.SourceFile, fl})
			flagRow++
		}
	}

	base := fmt.Sprintf("invoices_%s_%s", vendor, w.now().Format("20060102_150405"))
	path, err := w.reserve(outDir, base, ".xlsx")
	if err != nil {
		return "", err
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Debug("wrote excel export", "path", path, "records", len(recs))
	return path, nil
}

// reserve returns the first non-existing path for base+ext, appending
// _1, _2, ... on collision.
func (w *Writer) reserve(outDir, base, ext string) (string, error) {
	path := filepath.Join(outDir, base+ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to check output path: %w", err)
		}
		path = filepath.Join(outDir, fmt.Sprintf("%s_%d%s", base, n, ext))
	}
}

func setRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// sourceStem reduces a source path to a filesystem-safe file name stem.
func sourceStem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." {
		return "invoice"
	}
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
