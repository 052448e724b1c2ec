package main

import (
	"os"

	"github.com/dpshade/scriptureqa/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
