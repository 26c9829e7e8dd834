// Package main is the entry point for the ripel CLI.
package main

import (
	"os"

	"github.com/rubeniskov/ripel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
