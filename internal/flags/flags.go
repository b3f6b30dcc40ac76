package flags

// Package flags defines canonical CLI flag names shared across commands.
// Keeping these as constants helps avoid drift between Cobra flag wiring and
// other code paths that reference flags.
// IMPORTANT: These are flag *names* without leading dashes.
const (
	FlagConfig  = "config"
	FlagDB      = "db"
	FlagWatch   = "watch"
	FlagTimeout = "timeout"
	FlagScan    = "scan"
	FlagRepo    = "repo"
	FlagLimit   = "limit"
	FlagQuiet   = "quiet"
	FlagVerbose = "verbose"
)
