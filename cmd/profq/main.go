// Package main provides the profq command.
package main

import (
	"os"

	"github.com/leapstack-labs/profq/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
