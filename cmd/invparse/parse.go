package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beverage-tools/invparse/internal/invoice"
)

var (
	parseVendor string
	parseOutDir string
	parseExcel  bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Extract one invoice file to a JSON record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vendor, err := invoice.ParseVendor(parseVendor)
		if err != nil {
			return err
		}

		a, err := newApp(parseOutDir)
		if err != nil {
			return err
		}

		res, err := a.pipe.ProcessFile(cmd.Context(), args[0], vendor)
		if err != nil {
			return err
		}

		fmt.Printf("wrote %s\n", res.OutputPath)
		for _, flag := range res.Record.Meta.ValidationFlags {
			fmt.Printf("  flag: %s\n", flag)
		}

		if parseExcel {
			path, err := a.writer.WriteExcel([]*invoice.Record{res.Record}, a.outDir, vendor)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
		}
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseVendor, "vendor", "", "invoice vendor (lakeshore, breakthru, southern_glazers)")
	parseCmd.Flags().StringVar(&parseOutDir, "output-dir", "", "output directory (default: configured or ~/.invparse/output)")
	parseCmd.Flags().BoolVar(&parseExcel, "excel", false, "also write an Excel workbook for the record")
	_ = parseCmd.MarkFlagRequired("vendor")
}
