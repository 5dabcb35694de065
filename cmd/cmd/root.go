package cmd

import (
	"github.com/ostafen/binwalk/internal/env"
	"github.com/spf13/cobra"
)

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   env.AppName,
		Short: env.AppName + " - firmware analysis and extraction tool",
	}

	rootCmd.PersistentFlags().String("config", "", "path of a YAML config file (default: .binwalk.yml, then $XDG_CONFIG_HOME/binwalk/config.yml)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "minimum level of the session log (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(
		DefineScanCommand(),
		DefineExtractCommand(),
		DefineSignaturesCommand(),
		DefineEntropyCommand(),
		DefineMountCommand(),
		DefineVersionCommand(),
	)

	return rootCmd.Execute()
}
