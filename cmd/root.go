// Package cmd implements the phasebridge command line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"sitebridge.dev/phasebridge/internal/workflow"
)

var configFile string

// rootCmd is the daemon's single entry point. There are no subcommands:
// the process either starts and runs to completion, or fails fast with a
// non-zero exit code (see main.go for the exit code mapping).
var rootCmd = &cobra.Command{
	Use:   "phasebridge",
	Short: "phasebridge - working-hours phase bridge between edge cameras and the outside world",
	Long: `phasebridge ingests inference events pushed by edge cameras, commits a
site-wide operational phase from a configurable schedule, runs the
phase's pipeline (tracking, rule evaluation, dispatch) on a tick, and
republishes the committed phase, by default over the same transport it
ingests from.`,
	Version:      "0.1.0",
	SilenceUsage: true,
	RunE:         runDaemon,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/phasebridge/config.yml",
		"config file path")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	runner, err := workflow.New(configFile)
	if err != nil {
		return err
	}

	if err := runner.Start(); err != nil {
		return err
	}

	return runner.Run(context.Background())
}
