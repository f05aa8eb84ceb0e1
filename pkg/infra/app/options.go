package app

// CliOptions abstracts configuration options for reading parameters from the
// command line, a config file and the environment.
type CliOptions interface {
	// Flags returns the flags grouped by section.
	Flags() NamedFlagSets
	// Complete completes the options with defaults.
	Complete() error
	// Validate validates the options.
	Validate() error
}
