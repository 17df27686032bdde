package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/beverage-tools/invparse/internal/invoice"
	"github.com/beverage-tools/invparse/internal/pipeline"
)

var (
	watchVendor      string
	watchOutDir      string
	watchInitialScan bool
	watchDebounce    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and extract invoice files as they appear",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vendor, err := invoice.ParseVendor(watchVendor)
		if err != nil {
			return err
		}

		a, err := newApp(watchOutDir)
		if err != nil {
			return err
		}

		err = a.pipe.Watch(cmd.Context(), args[0], vendor, pipeline.WatchOptions{
			InitialScan: watchInitialScan,
			Debounce:    watchDebounce,
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchVendor, "vendor", "", "invoice vendor (lakeshore, breakthru, southern_glazers)")
	watchCmd.Flags().StringVar(&watchOutDir, "output-dir", "", "output directory (default: configured or ~/.invparse/output)")
	watchCmd.Flags().BoolVar(&watchInitialScan, "initial-scan", false, "process files already in the directory")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "delay before processing a newly written file")
	_ = watchCmd.MarkFlagRequired("vendor")
}
