// =============================================================================
// SAF-T (AO) Validator - Main Entry Point
// =============================================================================
//
// This is the main entry point for the SAF-T (AO) Validator CLI application.
// It initializes the Cobra CLI framework and delegates command execution to
// the cmd package.
//
// USAGE:
//   saft-validator validate <file>   - Validate files without modifying them
//   saft-validator autofix <file>    - Write fixed, versioned copies
//   saft-validator version           - Display the application version
//
// ARCHITECTURE:
//   This application follows a modular design where:
//   - cmd/           : Contains all CLI command definitions (Cobra)
//   - internal/      : Contains core business logic (not for external import)
//   - pkg/           : Contains shared utilities
//   - schemas/       : Contains the AGT XSD schema files
//
// =============================================================================

package main

import (
	"github.com/kwanza-dev/saft-ao-validator/cmd"
)

// main is the entry point of the application.
// It simply calls the Execute function from the cmd package, which
// initializes and runs the Cobra CLI.
func main() {
	cmd.Execute()
}
