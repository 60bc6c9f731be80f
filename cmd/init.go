package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/workmate/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize workmate configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose the provider, model and gateway platform, and writes a .workmate.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
