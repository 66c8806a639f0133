package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Algiras/skillz/internal/registry"
	"github.com/spf13/cobra"
)

var installUpdate bool

var installCmd = &cobra.Command{
	Use:   "install <manifest.json> [payload-file]",
	Short: "Register a tool from a manifest and optional payload file",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		facade, cleanup, err := buildFacade(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer cleanup()

		manifestData, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		var manifest registry.Manifest
		if err := json.Unmarshal(manifestData, &manifest); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		var payload []byte
		if len(args) == 2 {
			payload, err = os.ReadFile(args[1])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}

		formatter := formatterFromFlags()
		rec, err := facade.Registry.Register(manifest, payload, installUpdate)
		if err != nil {
			fmt.Println(formatter.FormatError(err))
			os.Exit(1)
		}
		fmt.Printf("installed %s@%s\n", rec.Manifest.Name, rec.Manifest.Version)
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().BoolVar(&installUpdate, "update", false, "overwrite an existing tool")
}
