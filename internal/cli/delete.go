package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <tool>",
	Short: "Remove a registered tool and its files",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		facade, cleanup, err := buildFacade(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()

		formatter := formatterFromFlags()
		deleted, err := facade.Registry.Delete(args[0])
		if err != nil {
			fmt.Println(formatter.FormatError(err))
			os.Exit(1)
		}
		if !deleted {
			fmt.Printf("tool %q was not found\n", args[0])
			os.Exit(1)
		}
		fmt.Printf("deleted %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
