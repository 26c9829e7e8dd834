// Package cli provides the command-line interface for ripel.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rubeniskov/ripel/internal/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var (
	cfgFile string
	cfg     *config.Config
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ripel",
		Short: "ripel - reference-resolving entity pipeline",
		Long: `ripel enriches row-change events into fully populated entities.

Entity models declare their cross-table associations; ripel compiles every
association of a changed row into a single composite SELECT, executes it in
one round trip against the configured data source, and emits the enriched
entity.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Help and completion never need configuration.
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "version" {
				return nil
			}

			var err error
			cfg, err = config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if cfg.Verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "Using environment: %s\n", cfg.Environment)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Reference-resolving entity pipeline
`)

	// Flag names must stay aligned with the config loader's key mapping.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ripel.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("source-type", "", "Data source type (sqlite|postgres|duckdb)")
	rootCmd.PersistentFlags().String("source-path", "", "Data source path (file-backed sources)")
	rootCmd.PersistentFlags().Int("workers", 0, "Number of pipeline workers")
	rootCmd.PersistentFlags().Int("buffer", 0, "Event channel capacity")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newRunCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
