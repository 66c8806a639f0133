package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/Algiras/skillz/internal/cliutil"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	Run: func(cmd *cobra.Command, args []string) {
		facade, cleanup, err := buildFacade(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()

		formatter := formatterFromFlags()
		fmt.Println(formatter.FormatTools(facade.Registry.List()))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func formatterFromFlags() *cliutil.Formatter {
	format := cliutil.FormatText
	if jsonOutput {
		format = cliutil.FormatJSON
	} else if rawOutput {
		format = cliutil.FormatRaw
	}
	return cliutil.NewFormatter(format, true)
}
