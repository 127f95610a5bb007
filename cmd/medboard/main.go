// Package main is the entry point for the medboard CLI.
package main

import (
	"os"

	"github.com/medboard/medboard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
