package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/beverage-tools/invparse/version"
)

var (
	cfgFile  string
	homePath string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "invparse",
	Short: "Extract structured data from beverage distributor invoices",
	Long: `invparse reads scanned beverage distributor invoices (PDF or image)
with a vision LLM and writes validated, structured JSON records.

Each invoice runs through a fixed pipeline:
  - Page preparation (PDF rendering, image passthrough)
  - Vision model extraction with a vendor-specific prompt
  - Response parsing tolerant of code fences and prose
  - Three-tier validation (structure, types, business rules)
  - JSON result writing, plus optional Excel batch export

Supported vendors: lakeshore, breakthru, southern_glazers.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.invparse/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homePath, "home", "", "invparse home directory (default: ~/.invparse)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, error",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(vendorsCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
