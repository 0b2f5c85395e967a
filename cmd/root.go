// =============================================================================
// SAF-T (AO) Validator - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (saft-validator)
//   ├── validateCmd (saft-validator validate)
//   ├── autofixCmd  (saft-validator autofix)
//   └── versionCmd  (saft-validator version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (e.g., --config, --verbose)
//   2. Loading the settings file
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kwanza-dev/saft-ao-validator/internal/config"
	"github.com/kwanza-dev/saft-ao-validator/pkg/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables verbose logging when set to true.
var verbose bool

// logger is the shared logger for all commands.
var logger = logrus.New()

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "saft-validator",

	Short: "SAF-T (AO) Validator - Validate and repair tax audit files before submission",

	Long: `SAF-T (AO) Validator checks Standard Audit File for Tax submissions
against the AGT schema and a catalog of consistency rules, and can produce
repaired versions of a file when findings allow a deterministic fix.

Key Features:
  - XSD validation against the SAFTAO1.01_01 schema
  - Hash chain, totals, date order and cross-reference checks
  - Tax number plausibility classification
  - Two-tier auto-fix with a full before/after ledger
  - Excel and structured-log reporting

Example Usage:
  saft-validator validate saft_jan.xml          # Validate a single file
  saft-validator autofix saft_jan.xml           # Apply reversible fixes
  saft-validator autofix --mode hard saft.xml   # Allow structural repairs`,

	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print the help message.
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// Persistent flags are available to this command and all subcommands.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file (default is config.yaml)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// loadSettings reads the configuration file and configures the shared
// logger. A missing file under the default path falls back to built-in
// defaults; an explicitly named file must exist.
func loadSettings() (*config.Settings, error) {
	settings := config.DefaultSettings()

	if _, err := os.Stat(cfgFile); err == nil {
		loaded, err := config.LoadSettings(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		settings = loaded
	} else if cfgFile != "config.yaml" {
		return nil, fmt.Errorf("configuration file not found: %s", cfgFile)
	}

	// Like the default config file, the default schema path is a convention,
	// not a requirement: when nothing ships at it, structural validation is
	// disabled instead of failing engine setup. An explicitly configured
	// schema path must still exist.
	if settings.SchemaPath == config.DefaultSettings().SchemaPath && !utils.FileExists(settings.SchemaPath) {
		logger.Warnf("schema not found at default path %s, structural validation disabled", settings.SchemaPath)
		settings.SchemaPath = ""
	}

	level, err := logrus.ParseLevel(settings.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &settings, nil
}
