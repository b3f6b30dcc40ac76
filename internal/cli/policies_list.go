package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"orgsentry/internal/flags"
	"orgsentry/internal/policy"
)

var policiesListQuiet bool

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Manage and list policy types",
	Long: `Discover which policy types this build can evaluate.

A configuration file binds each policy to one of these types; configured
policies with an unknown type are skipped during scans.

Examples:
  # List all available policy types
  orgsentry policies list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var policiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available policy types",
	Long: `List the policy types currently registered in this build, sorted by type
tag.

Examples:
  orgsentry policies list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, e := range policy.List() {
			if policiesListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), e.Type())
			} else {
				printEvaluator(cmd.OutOrStdout(), e)
			}
		}
		return nil
	},
}

func printEvaluator(w io.Writer, e policy.Evaluator) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "TYPE: %s\n", e.Type())
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, e.Description())
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(policiesCmd)
	policiesCmd.AddCommand(policiesListCmd)
	policiesListCmd.Flags().BoolVarP(&policiesListQuiet, flags.FlagQuiet, "q", false, "Only print type tags")
}
