// Package main is the entry point for the alfred CLI.
package main

import (
	"os"

	"github.com/alfredlabs/alfred/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
