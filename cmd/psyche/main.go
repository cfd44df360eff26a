package main

import (
	"os"

	"github.com/mkern/psyche/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
