package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beverage-tools/invparse/internal/invoice"
)

var (
	batchVendor string
	batchOutDir string
	batchExcel  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Extract a batch of invoice files, isolating per-file failures",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vendor, err := invoice.ParseVendor(batchVendor)
		if err != nil {
			return err
		}

		a, err := newApp(batchOutDir)
		if err != nil {
			return err
		}

		stats, err := a.pipe.RunBatch(cmd.Context(), args, vendor)
		if err != nil {
			return err
		}

		if batchExcel && len(stats.Records) > 0 {
			path, err := a.writer.WriteExcel(stats.Records, a.outDir, vendor)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
		}

		fmt.Printf("processed %d files: %d succeeded, %d failed, %d flags raised\n",
			stats.Processed, stats.Succeeded, stats.Failed, stats.FlagsRaised)
		for _, f := range stats.Failures {
			fmt.Printf("  %s (%s): %v\n", f.Path, f.Kind, f.Err)
		}

		if stats.Failed > 0 {
			return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Processed)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchVendor, "vendor", "", "invoice vendor (lakeshore, breakthru, southern_glazers)")
	batchCmd.Flags().StringVar(&batchOutDir, "output-dir", "", "output directory (default: configured or ~/.invparse/output)")
	batchCmd.Flags().BoolVar(&batchExcel, "excel", false, "also write an Excel workbook for the batch")
	_ = batchCmd.MarkFlagRequired("vendor")
}
