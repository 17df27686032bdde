package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beverage-tools/invparse/internal/extract"
	"github.com/beverage-tools/invparse/internal/invoice"
	"github.com/beverage-tools/invparse/internal/prepare"
	"github.com/beverage-tools/invparse/internal/prompts"
	"github.com/beverage-tools/invparse/internal/validate"
	"github.com/beverage-tools/invparse/internal/writer"
)

const goodResponse = "```json\n" + `{
	"vendor_name": "Lakeshore Beverage",
	"invoice_number": "INV-001",
	"invoice_date": "01/15/2025",
	"items": [
		{"description": "Bud Light 12oz Can", "qty": 24, "unit_price": 12.99, "extended_amount": 311.76}
	],
	"total_sales": 311.76
}` + "\n```"

type stubPreparer struct{}

func (stubPreparer) Prepare(_ context.Context, path string) ([]prepare.Page, error) {
	if strings.Contains(path, "unreadable") {
		return nil, &invoice.FileError{Path: path, Reason: "unreadable file"}
	}
	return []prepare.Page{{Data: []byte("img"), MIME: "image/png"}}, nil
}

type stubRequester struct {
	mu       sync.Mutex
	calls    int
	response string
	failOn   func(call int) error
}

func (s *stubRequester) Extract(_ context.Context, prompt string, pages []prepare.Page) (*extract.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failOn != nil {
		if err := s.failOn(s.calls); err != nil {
			return nil, err
		}
	}
	content := s.response
	if content == "" {
		content = goodResponse
	}
	return &extract.Result{Content: content, Model: "gpt-4o", RequestID: "req-test"}, nil
}

func (s *stubRequester) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestPipeline(t *testing.T, req Requester) (*Pipeline, string) {
	t.Helper()
	v, err := validate.New(validate.Options{})
	if err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()
	p, err := New(Options{
		Preparer:  stubPreparer{},
		Requester: req,
		Validator: v,
		Prompts:   prompts.NewRegistry("", nil),
		Writer:    writer.New(nil),
		OutDir:    outDir,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p, outDir
}

func TestProcessFile(t *testing.T) {
	p, _ := newTestPipeline(t, &stubRequester{})

	res, err := p.ProcessFile(context.Background(), "/tmp/in/invoice.pdf", invoice.VendorLakeshore)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if res.Record.Meta.SourceFile != "/tmp/in/invoice.pdf" {
		t.Errorf("SourceFile = %q", res.Record.Meta.SourceFile)
	}
	if res.Record.InvoiceDate != "2025-01-15" {
		t.Errorf("InvoiceDate = %q", res.Record.InvoiceDate)
	}

	// The written file holds the same record.
	raw, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	var round invoice.Record
	if err := json.Unmarshal(raw, &round); err != nil {
		t.Fatal(err)
	}
	if round.InvoiceNumber != "INV-001" {
		t.Errorf("InvoiceNumber = %q", round.InvoiceNumber)
	}
}

func TestProcessFile_MalformedResponse(t *testing.T) {
	p, _ := newTestPipeline(t, &stubRequester{response: "I could not read this invoice, sorry."})

	_, err := p.ProcessFile(context.Background(), "/tmp/in/invoice.pdf", invoice.VendorLakeshore)
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := invoice.ErrorKind(err); kind != "malformed_response" {
		t.Errorf("kind = %q", kind)
	}
}

func TestRunBatch_FailureIsolation(t *testing.T) {
	// File 2 of 3 fails with an API error; the batch keeps going.
	req := &stubRequester{failOn: func(call int) error {
		if call == 2 {
			return &invoice.APIError{Reason: "rate limited"}
		}
		return nil
	}}
	p, _ := newTestPipeline(t, req)

	paths := []string{"/tmp/in/one.pdf", "/tmp/in/two.pdf", "/tmp/in/three.pdf"}
	stats, err := p.RunBatch(context.Background(), paths, invoice.VendorLakeshore)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if stats.Processed != 3 || stats.Succeeded != 2 || stats.Failed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(stats.Failures) != 1 {
		t.Fatalf("failures = %d", len(stats.Failures))
	}
	f := stats.Failures[0]
	if f.Path != "/tmp/in/two.pdf" || f.Kind != "api_error" {
		t.Errorf("failure = %+v", f)
	}
	if len(stats.Records) != 2 || len(stats.Outputs) != 2 {
		t.Errorf("records = %d, outputs = %d", len(stats.Records), len(stats.Outputs))
	}
}

func TestRunBatch_FileErrorKind(t *testing.T) {
	p, _ := newTestPipeline(t, &stubRequester{})

	stats, err := p.RunBatch(context.Background(),
		[]string{"/tmp/in/unreadable.pdf"}, invoice.VendorLakeshore)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if stats.Failed != 1 || stats.Failures[0].Kind != "file_error" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunBatch_ContextCancel(t *testing.T) {
	p, _ := newTestPipeline(t, &stubRequester{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := p.RunBatch(ctx, []string{"/tmp/in/one.pdf"}, invoice.VendorLakeshore)
	if err == nil {
		t.Fatal("expected context error")
	}
	if stats.Processed != 0 {
		t.Errorf("Processed = %d, want 0", stats.Processed)
	}
}

func TestWatch_ProcessesExistingFiles(t *testing.T) {
	inbox := t.TempDir()
	if err := os.WriteFile(filepath.Join(inbox, "scan.png"), []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, outDir := newTestPipeline(t, &stubRequester{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, inbox, invoice.VendorLakeshore, WatchOptions{InitialScan: true})
	}()

	// Poll until the initially scanned file produces an output.
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, _ := os.ReadDir(outDir)
		if len(entries) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no output produced from initial scan")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != context.Canceled && err != context.DeadlineExceeded {
		t.Errorf("Watch() error = %v", err)
	}
}

func waitForCalls(t *testing.T, req *stubRequester, want int) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for req.callCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("processed %d of %d files", req.callCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatch_InitialScanDeliversAllFiles(t *testing.T) {
	// An inbox holding more files than the event channel buffers must
	// still deliver every one of them.
	inbox := t.TempDir()
	const n = 300
	for i := 0; i < n; i++ {
		name := filepath.Join(inbox, fmt.Sprintf("scan_%03d.png", i))
		if err := os.WriteFile(name, []byte("img"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	req := &stubRequester{}
	p, _ := newTestPipeline(t, req)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, inbox, invoice.VendorLakeshore, WatchOptions{InitialScan: true})
	}()

	waitForCalls(t, req, n)

	cancel()
	if err := <-done; err != context.Canceled && err != context.DeadlineExceeded {
		t.Errorf("Watch() error = %v", err)
	}
}

func TestWatch_DebouncedBurst(t *testing.T) {
	inbox := t.TempDir()
	if err := os.WriteFile(filepath.Join(inbox, "first.png"), []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := &stubRequester{}
	p, _ := newTestPipeline(t, req)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, inbox, invoice.VendorLakeshore, WatchOptions{
			InitialScan: true,
			Debounce:    time.Millisecond,
		})
	}()

	// The scanned file confirms the watcher is live before the burst.
	waitForCalls(t, req, 1)

	const burst = 50
	for i := 0; i < burst; i++ {
		name := filepath.Join(inbox, fmt.Sprintf("burst_%02d.png", i))
		if err := os.WriteFile(name, []byte("img"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	waitForCalls(t, req, 1+burst)

	cancel()
	if err := <-done; err != context.Canceled && err != context.DeadlineExceeded {
		t.Errorf("Watch() error = %v", err)
	}
}
