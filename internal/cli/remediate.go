package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"orgsentry/internal/config"
	"orgsentry/internal/flags"
	gh "orgsentry/internal/github"
	"orgsentry/internal/githubauth"
	"orgsentry/internal/remediation"
	"orgsentry/internal/store"
)

var (
	remediateConfigPath string
	remediateDBPath     string
	remediateScanID     int64
	remediateTimeout    time.Duration
)

var remediateCmd = &cobra.Command{
	Use:   "remediate",
	Short: "Run remediation for a completed scan's violations",
	Long: `Process the configured remediation action for every violation recorded by
a scan. Actions already taken are skipped (no duplicate issues, no redundant
archive calls); every attempt is appended to the action log.

Normally remediation is scheduled automatically after a scan; this command
re-runs it, e.g. after fixing credentials or configuration.

Examples:
  orgsentry remediate --scan 42 --config orgsentry.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), remediateTimeout)
		defer cancel()

		provider := config.NewFileProvider(remediateConfigPath)
		cfg, err := provider.GetConfig(false)
		if err != nil {
			return err
		}

		creds, err := githubauth.CredentialsFromEnv()
		if err != nil {
			return err
		}
		manager, err := githubauth.NewManager(creds)
		if err != nil {
			return err
		}
		client, err := gh.NewClient(ctx, manager, gh.WithVerbose(verbose, nil))
		if err != nil {
			return err
		}
		gateway := gh.NewOrgGateway(client, cfg.Organization)

		st, err := store.Open(remediateDBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		scan, err := st.GetScan(ctx, remediateScanID)
		if err != nil {
			return err
		}
		if scan == nil {
			return fmt.Errorf("scan %d not found", remediateScanID)
		}

		executor := remediation.NewExecutor(st, gateway, provider)
		if err := executor.ProcessActionsForScan(ctx, remediateScanID); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "remediation for scan %d finished; see the action log for per-action outcomes\n", remediateScanID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remediateCmd)

	remediateCmd.Flags().StringVar(&remediateConfigPath, flags.FlagConfig, "orgsentry.yaml", "Path to the policy configuration file")
	remediateCmd.Flags().StringVar(&remediateDBPath, flags.FlagDB, "orgsentry.db", "Path to the SQLite database")
	remediateCmd.Flags().Int64Var(&remediateScanID, flags.FlagScan, 0, "Scan ID to remediate")
	remediateCmd.Flags().DurationVar(&remediateTimeout, flags.FlagTimeout, 30*time.Minute, "Global timeout for the run")
	_ = remediateCmd.MarkFlagRequired(flags.FlagScan)
}
