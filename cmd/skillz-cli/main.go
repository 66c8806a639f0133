package main

import (
	"os"

	"github.com/Algiras/skillz/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
