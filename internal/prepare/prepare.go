// Package prepare turns an invoice file into the page images sent to the
// vision model. PDFs are rendered page by page at 300 DPI via pdftoppm;
// plain image files pass through untouched.
package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/beverage-tools/invparse/internal/invoice"
)

// DefaultMaxSizeMB is the input file size ceiling when none is configured.
const DefaultMaxSizeMB = 20

// Page is one rendered page image ready for a vision request.
type Page struct {
	Data []byte
	MIME string
}

// Preparer validates invoice files and converts them to page images.
type Preparer struct {
	maxBytes int64
	logger   *slog.Logger
}

// New creates a Preparer. maxSizeMB <= 0 falls back to the default.
func New(maxSizeMB int, logger *slog.Logger) *Preparer {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Preparer{maxBytes: int64(maxSizeMB) * 1024 * 1024, logger: logger}
}

var imageMIMEs = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Prepare checks the file and returns its page images in order. Every
// failure is a FileError; nothing here talks to the network.
func (p *Preparer) Prepare(ctx context.Context, path string) ([]Page, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &invoice.FileError{Path: path, Reason: "file not found", Err: err}
	}
	if info.Size() > p.maxBytes {
		return nil, &invoice.FileError{
			Path:   path,
			Reason: fmt.Sprintf("file too large: %.1fMB exceeds %dMB limit", float64(info.Size())/(1024*1024), p.maxBytes/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return p.renderPDF(ctx, path)
	case imageMIMEs[ext] != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &invoice.FileError{Path: path, Reason: "unreadable file", Err: err}
		}
		p.logger.Debug("prepared image file", "path", path, "bytes", len(data))
		return []Page{{Data: data, MIME: imageMIMEs[ext]}}, nil
	default:
		return nil, &invoice.FileError{
			Path:   path,
			Reason: fmt.Sprintf("unsupported file format %q (supported: .pdf, .png, .jpg, .jpeg)", ext),
		}
	}
}

// renderPDF renders every page concurrently and returns them in page order.
func (p *Preparer) renderPDF(ctx context.Context, path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &invoice.FileError{Path: path, Reason: "unreadable file", Err: err}
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, &invoice.FileError{Path: path, Reason: "failed to read PDF page count", Err: err}
	}
	if pageCount == 0 {
		return nil, &invoice.FileError{Path: path, Reason: "PDF has no pages"}
	}

	type result struct {
		page int
		data []byte
		err  error
	}

	maxWorkers := runtime.NumCPU()
	results := make(chan result, pageCount)
	sem := make(chan struct{}, maxWorkers)

	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, &invoice.FileError{Path: path, Reason: "canceled", Err: err}
		}
		sem <- struct{}{} // acquire
		go func(page int) {
			defer func() { <-sem }() // release
			data, err := renderPage(ctx, path, page)
			results <- result{page: page, data: data, err: err}
		}(page)
	}

	pages := make([]Page, pageCount)
	for i := 0; i < pageCount; i++ {
		r := <-results
		if r.err != nil {
			return nil, &invoice.FileError{Path: path, Reason: fmt.Sprintf("failed to render page %d", r.page), Err: r.err}
		}
		pages[r.page-1] = Page{Data: r.data, MIME: "image/png"}
	}

	p.logger.Debug("rendered PDF", "path", path, "pages", pageCount)
	return pages, nil
}

// renderPage renders a single PDF page to PNG using pdftoppm (poppler-utils).
// Cancelling ctx kills an in-flight render.
func renderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "invparse-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", "300",
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}
