// Package commands implements the dispensercell CLI.
package commands

import "github.com/spf13/cobra"

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "dispensercell",
	Short: "dispensercell - robotic dispensing cell supervisor",
	Long: `dispensercell drives a robotic dispensing cell: weight-controlled
dispensers, hatches, a heat sealer, a gantry, and the EtherCAT fieldbus
and motion controllers they sit on.

Use "dispensercell [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dispensercell/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
}

// GetConfigFile returns the config file path from the global --config flag.
func GetConfigFile() string {
	return cfgFile
}
