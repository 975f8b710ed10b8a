package cli

import (
	"github.com/spf13/cobra"

	"github.com/droidtune-io/droidtune/internal/logging"
)

var (
	flagADB      string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "droidtune",
	Short: "Reversible Android device tuning over adb",
	Long: `Droidtune applies declarative device profiles to Android devices over adb.

Every mutated value's original is captured before the first write, so a run
always leaves behind:
  • revert.sh  - an idempotent shell script restoring the pre-run state
  • ledger.csv - the raw original values, replayable with 'droidtune revert'
  • audit.csv  - a per-key record of everything attempted`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(flagLogLevel)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagADB, "adb", "", "Path to the adb binary (default: $PATH lookup)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}
