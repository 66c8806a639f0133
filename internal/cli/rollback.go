package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <tool>",
	Short: "List a tool's stored versions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		facade, cleanup, err := buildFacade(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()

		formatter := formatterFromFlags()
		versions, current, err := facade.Registry.ListVersions(args[0])
		if err != nil {
			fmt.Println(formatter.FormatError(err))
			os.Exit(1)
		}
		for _, v := range versions {
			marker := "  "
			if v == current {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, v)
		}
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <tool> <version>",
	Short: "Roll a tool back to a previously stored version",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		facade, cleanup, err := buildFacade(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()

		formatter := formatterFromFlags()
		rec, err := facade.Registry.Rollback(args[0], args[1])
		if err != nil {
			fmt.Println(formatter.FormatError(err))
			os.Exit(1)
		}
		fmt.Printf("%s is now at %s\n", rec.Manifest.Name, rec.Manifest.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(rollbackCmd)
}
