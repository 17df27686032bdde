package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beverage-tools/invparse/internal/invoice"
)

var vendorsCmd = &cobra.Command{
	Use:   "vendors",
	Short: "List supported invoice vendors",
	Run: func(cmd *cobra.Command, args []string) {
		for _, v := range invoice.Vendors() {
			fmt.Printf("%-18s %s\n", v, v.DisplayName())
		}
	},
}
