package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var importOverwrite bool

var importCmd = &cobra.Command{
	Use:   "import <source>",
	Short: "Import a tool from a git repository or GitHub gist",
	Long: `import installs a tool from an external source: a git URL
(optionally suffixed with #branch), or a GitHub gist given as
"gist:ID" or a gist.github.com URL. The source must contain a
manifest.json at its root.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		facade, cleanup, err := buildFacade(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()

		formatter := formatterFromFlags()
		rec, err := facade.Registry.Import(context.Background(), args[0], importOverwrite)
		if err != nil {
			fmt.Println(formatter.FormatError(err))
			os.Exit(1)
		}
		fmt.Printf("imported %s@%s\n", rec.Manifest.Name, rec.Manifest.Version)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "overwrite an existing tool")
}
