package cli

import (
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	rawOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "skillz-cli",
	Short: "Skillz CLI - manage and call tools served by the skillz runtime",
	Long: `skillz-cli is the command-line surface over the skillz Tool Execution
Runtime: register tools, call them, inspect their versions, and tail
their logs, all directly against the local tools directory.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&rawOutput, "raw", false, "raw output (no formatting)")
}
