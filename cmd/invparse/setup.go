package main

import (
	"fmt"
	"log/slog"

	"github.com/beverage-tools/invparse/internal/config"
	"github.com/beverage-tools/invparse/internal/extract"
	"github.com/beverage-tools/invparse/internal/home"
	"github.com/beverage-tools/invparse/internal/pipeline"
	"github.com/beverage-tools/invparse/internal/prepare"
	"github.com/beverage-tools/invparse/internal/prompts"
	"github.com/beverage-tools/invparse/internal/validate"
	"github.com/beverage-tools/invparse/internal/writer"
)

// app holds the wired collaborators shared by the processing commands.
type app struct {
	cfg    *config.Config
	home   *home.Dir
	pipe   *pipeline.Pipeline
	writer *writer.Writer
	outDir string
}

// newApp loads config and assembles the pipeline. outDirFlag, when set,
// wins over both the config and the home default.
func newApp(outDirFlag string) (*app, error) {
	hd, err := home.New(homePath)
	if err != nil {
		return nil, err
	}

	cfgPath := cfgFile
	if cfgPath == "" && hd.ConfigExists() {
		cfgPath = hd.ConfigPath()
	}
	cm, err := config.NewManager(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg := cm.Get()

	apiKey := cfg.ResolvedAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no OpenAI API key configured; set OPENAI_API_KEY or openai.api_key in %s", hd.ConfigPath())
	}

	tolerance, err := cfg.Validation.ToleranceDecimal()
	if err != nil {
		return nil, err
	}
	validator, err := validate.New(validate.Options{
		Tolerance:   tolerance,
		DateFormats: cfg.Validation.DateFormats,
	})
	if err != nil {
		return nil, err
	}

	logger := slog.Default()

	outDir := outDirFlag
	if outDir == "" {
		outDir = cfg.Output.Dir
	}
	if outDir == "" {
		outDir = hd.OutputDir()
	}

	wr := writer.New(logger)
	pipe, err := pipeline.New(pipeline.Options{
		Preparer: prepare.New(cfg.Files.MaxSizeMB, logger),
		Requester: extract.NewClient(extract.Config{
			APIKey:      apiKey,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
			MaxRetries:  cfg.OpenAI.MaxRetries,
			RetryDelay:  cfg.OpenAI.RetryDelay(),
			Timeout:     cfg.OpenAI.Timeout(),
			Logger:      logger,
		}),
		Validator: validator,
		Prompts:   prompts.NewRegistry(hd.PromptsDir(), logger),
		Writer:        wr,
		OutDir:        outDir,
		MinConfidence: cfg.Validation.ConfidenceThreshold,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, home: hd, pipe: pipe, writer: wr, outDir: outDir}, nil
}
