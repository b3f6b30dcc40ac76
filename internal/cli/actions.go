package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"orgsentry/internal/flags"
	"orgsentry/internal/store"
)

var (
	actionsDBPath string
	actionsRepoID int64
	actionsLimit  int
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Show the remediation action log",
	Long: `Show recorded remediation attempts, newest first. Every attempt is listed
with its outcome: success, skipped (already remediated), or failed.

Examples:
  # The 20 most recent attempts across all repositories
  orgsentry actions

  # Full history for one repository, by its remote numeric ID
  orgsentry actions --repo 123456`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(actionsDBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		var entries []store.ActionLogEntry
		if actionsRepoID != 0 {
			entries, err = st.ListActionLogForRepository(ctx, actionsRepoID)
		} else {
			entries, err = st.ListRecentActionLog(ctx, actionsLimit)
		}
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remediation actions recorded")
			return nil
		}
		for _, e := range entries {
			printActionLogEntry(cmd.OutOrStdout(), e)
		}
		return nil
	},
}

func printActionLogEntry(w io.Writer, e store.ActionLogEntry) {
	c := color.New(color.FgYellow)
	switch e.Outcome {
	case store.OutcomeSuccess:
		c = color.New(color.FgGreen)
	case store.OutcomeFailed:
		c = color.New(color.FgRed)
	}
	fmt.Fprintf(w, "%s  repo %d  %s/%s  ", e.CreatedAt.Format("2006-01-02 15:04:05"), e.RepositoryID, e.PolicyName, e.Action)
	c.Fprint(w, string(e.Outcome))
	if e.Detail != "" {
		fmt.Fprintf(w, "  %s", e.Detail)
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(actionsCmd)

	actionsCmd.Flags().StringVar(&actionsDBPath, flags.FlagDB, "orgsentry.db", "Path to the SQLite database")
	actionsCmd.Flags().Int64Var(&actionsRepoID, flags.FlagRepo, 0, "Only show actions for this repository ID")
	actionsCmd.Flags().IntVar(&actionsLimit, flags.FlagLimit, 20, "Maximum number of entries to show")
}
