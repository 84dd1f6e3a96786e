package main

import (
	"os"

	"github.com/stashdrop-labs/stashdrop/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
