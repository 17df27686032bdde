// Package pipeline orchestrates one invoice's journey from file to
// written record, and runs batches of them with per-file failure
// isolation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/beverage-tools/invparse/internal/extract"
	"github.com/beverage-tools/invparse/internal/invoice"
	"github.com/beverage-tools/invparse/internal/parse"
	"github.com/beverage-tools/invparse/internal/prepare"
	"github.com/beverage-tools/invparse/internal/prompts"
	"github.com/beverage-tools/invparse/internal/validate"
)

// Preparer turns an invoice file into page images.
type Preparer interface {
	Prepare(ctx context.Context, path string) ([]prepare.Page, error)
}

// Requester sends page images to the vision model.
type Requester interface {
	Extract(ctx context.Context, prompt string, pages []prepare.Page) (*extract.Result, error)
}

// RecordWriter persists a finalized record.
type RecordWriter interface {
	WriteJSON(rec *invoice.Record, outDir string) (string, error)
}

// Options wires the pipeline's collaborators.
type Options struct {
	Preparer  Preparer
	Requester Requester
	Validator *validate.Validator
	Prompts   *prompts.Registry
	Writer    RecordWriter
	OutDir    string
	// MinConfidence marks records for review: a parse confidence below
	// it is logged as a warning. Zero disables the check.
	MinConfidence float64
	Logger        *slog.Logger
}

// Pipeline runs prepare, extract, parse, validate, write for one file at
// a time.
type Pipeline struct {
	preparer      Preparer
	requester     Requester
	validator     *validate.Validator
	prompts       *prompts.Registry
	writer        RecordWriter
	outDir        string
	minConfidence float64
	logger        *slog.Logger
}

// New assembles a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Preparer == nil || opts.Requester == nil || opts.Validator == nil ||
		opts.Prompts == nil || opts.Writer == nil {
		return nil, fmt.Errorf("pipeline requires all collaborators")
	}
	if opts.OutDir == "" {
		return nil, fmt.Errorf("pipeline requires an output directory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		preparer:      opts.Preparer,
		requester:     opts.Requester,
		validator:     opts.Validator,
		prompts:       opts.Prompts,
		writer:        opts.Writer,
		outDir:        opts.OutDir,
		minConfidence: opts.MinConfidence,
		logger:        logger,
	}, nil
}

// FileResult is the outcome of one successfully processed file.
type FileResult struct {
	Record     *invoice.Record
	OutputPath string
}

// ProcessFile runs the full pipeline for one file. Any returned error is
// one of the per-file error kinds and poisons only this file.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, vendor invoice.Vendor) (*FileResult, error) {
	log := p.logger.With("file", path, "vendor", vendor)

	pages, err := p.preparer.Prepare(ctx, path)
	if err != nil {
		return nil, err
	}
	log.Debug("prepared pages", "count", len(pages))

	prompt, err := p.prompts.Get(vendor)
	if err != nil {
		return nil, err
	}

	res, err := p.requester.Extract(ctx, prompt, pages)
	if err != nil {
		return nil, err
	}
	log.Debug("model response received",
		"request_id", res.RequestID,
		"prompt_tokens", res.PromptTokens,
		"completion_tokens", res.CompletionTokens,
		"duration", res.Duration)

	candidate, err := parse.Parse(res.Content)
	if err != nil {
		return nil, err
	}

	rec, flags, err := p.validator.Validate(candidate, vendor)
	if err != nil {
		return nil, err
	}
	rec.Meta.SourceFile = path

	if p.minConfidence > 0 && rec.Meta.ParseConfidence < p.minConfidence {
		log.Warn("parse confidence below threshold, review recommended",
			"confidence", rec.Meta.ParseConfidence,
			"threshold", p.minConfidence,
			"flags", len(flags))
	}

	outPath, err := p.writer.WriteJSON(rec, p.outDir)
	if err != nil {
		return nil, &invoice.FileError{Path: path, Reason: "failed to write result", Err: err}
	}

	log.Info("processed invoice",
		"invoice_number", rec.InvoiceNumber,
		"items", len(rec.Items),
		"flags", len(flags),
		"confidence", rec.Meta.ParseConfidence,
		"output", outPath)

	return &FileResult{Record: rec, OutputPath: outPath}, nil
}

// Failure records one file the batch could not process.
type Failure struct {
	Path string
	Kind string
	Err  error
}

// Stats accumulates batch results.
type Stats struct {
	Processed   int
	Succeeded   int
	Failed      int
	FlagsRaised int
	Failures    []Failure
	Records     []*invoice.Record
	Outputs     []string
}

// RunBatch processes files sequentially. A file's failure is recorded and
// the batch moves on; only context cancellation stops the run early.
func (p *Pipeline) RunBatch(ctx context.Context, paths []string, vendor invoice.Vendor) (*Stats, error) {
	stats := &Stats{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Processed++
		res, err := p.ProcessFile(ctx, path, vendor)
		if err != nil {
			stats.Failed++
			kind := invoice.ErrorKind(err)
			stats.Failures = append(stats.Failures, Failure{Path: path, Kind: kind, Err: err})
			p.logger.Error("failed to process file", "file", path, "kind", kind, "error", err)
			continue
		}

		stats.Succeeded++
		stats.FlagsRaised += len(res.Record.Meta.ValidationFlags)
		stats.Records = append(stats.Records, res.Record)
		stats.Outputs = append(stats.Outputs, res.OutputPath)
	}

	p.logger.Info("batch complete",
		"processed", stats.Processed,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"flags_raised", stats.FlagsRaised)

	return stats, nil
}
