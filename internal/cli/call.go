package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <tool> [key=value...]",
	Short: "Call a tool",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		facade, cleanup, err := buildFacade(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()

		formatter := formatterFromFlags()
		toolName := args[0]
		toolArgs := parseKeyValueArgs(args[1:])

		result, err := facade.Call(ctx, toolName, toolArgs)
		if err != nil {
			fmt.Println(formatter.FormatError(err))
			os.Exit(1)
		}
		fmt.Println(formatter.FormatResult(result))
	},
}

// parseKeyValueArgs builds a tool arguments map from "key=value" CLI
// tokens.
func parseKeyValueArgs(tokens []string) map[string]interface{} {
	args := make(map[string]interface{})
	for _, token := range tokens {
		kv := strings.SplitN(token, "=", 2)
		if len(kv) == 2 {
			args[kv[0]] = kv[1]
		}
	}
	return args
}

func init() {
	rootCmd.AddCommand(callCmd)
}
