package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"orgsentry/internal/flags"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "orgsentry",
	Short: "Audit GitHub organization repositories against policy and remediate violations",
	Long: `OrgSentry continuously audits an organization's repositories against a
declarative set of compliance policies and remediates violations by filing
issues or archiving repositories.

Examples:
	# Show available commands and global flags
	orgsentry --help

	# Run one scan
	orgsentry scan --config orgsentry.yaml

	# List the policy types this build can evaluate
	orgsentry policies list

	# Print build info
	orgsentry version`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, flags.FlagVerbose, false, "Enable verbose logging (prints every GitHub API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
