package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	// configPath is the warren.yml location, shared by all subcommands
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warren",
	Short: "Warren - Incremental code generation with artifact caching",
	Long: `Warren orchestrates code generation for multi-language builds: it
discovers which generated languages each part of the build graph needs,
regenerates only sources whose fingerprints changed, and splices synthetic
targets into the graph so consumers depend on generated code transparently.

Generated artifacts are cached locally or in a shared Redis cache, so
unchanged sources are restored instead of regenerated.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	// e.g., "warren --force java" instead of "warren gen --force java"
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "warren.yml", "Path to the warren configuration file")
}
