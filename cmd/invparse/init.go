package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beverage-tools/invparse/internal/config"
	"github.com/beverage-tools/invparse/internal/home"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the invparse home directory and default config",
	RunE: func(cmd *cobra.Command, args []string) error {
		hd, err := home.New(homePath)
		if err != nil {
			return err
		}
		if err := hd.EnsureExists(); err != nil {
			return err
		}

		if hd.ConfigExists() && !initForce {
			fmt.Printf("config already exists at %s (use --force to overwrite)\n", hd.ConfigPath())
			return nil
		}
		if err := config.WriteDefault(hd.ConfigPath()); err != nil {
			return err
		}

		fmt.Printf("initialized %s\n", hd.Path())
		fmt.Printf("  config:  %s\n", hd.ConfigPath())
		fmt.Printf("  output:  %s\n", hd.OutputDir())
		fmt.Printf("  prompts: %s\n", hd.PromptsDir())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}
