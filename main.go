// Package main is the entry point for the phasebridge daemon.
package main

import (
	"errors"
	"fmt"
	"os"

	"sitebridge.dev/phasebridge/cmd"
	"sitebridge.dev/phasebridge/internal/model"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		os.Exit(0)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if errors.Is(err, model.ErrConfigInvalid) {
		os.Exit(1)
	}
	os.Exit(2)
}
