// Package app defines the contract between command options and the
// application bootstrapper.
package app

import cliflag "github.com/kart-io/nphies-rag/pkg/app/cliflag"

// CliOptions abstracts configuration options for reading parameters from
// the command line, a config file and the environment.
type CliOptions interface {
	// Flags returns the command flags grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in defaults that depend on other fields.
	Complete() error

	// Validate checks the completed options.
	Validate() error
}
