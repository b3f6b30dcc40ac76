package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"orgsentry/internal/config"
	"orgsentry/internal/flags"
	gh "orgsentry/internal/github"
	"orgsentry/internal/githubauth"
	"orgsentry/internal/orchestrator"
	"orgsentry/internal/remediation"
	"orgsentry/internal/scheduler"
	"orgsentry/internal/store"
)

var (
	scanConfigPath string
	scanDBPath     string
	scanWatch      bool
	scanTimeout    time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the organization's repositories and remediate violations",
	Long: `Scan every active repository of the configured organization against the
configured policies, persist the results, and schedule remediation for any
violations found.

Authentication:
  OrgSentry runs as a GitHub App installation. Set:
    ORGSENTRY_GITHUB_APP_ID            numeric App ID
    ORGSENTRY_GITHUB_INSTALLATION_ID   numeric installation ID
    ORGSENTRY_GITHUB_PRIVATE_KEY_FILE  path to the App's PEM private key

Scheduling:
  A single scan runs by default. With --watch, scans repeat per the
  "schedule" value in the configuration file (e.g. "every 1h") until the
  process is interrupted. --timeout bounds each scan cycle, not the whole
  process.

Exit codes:
  0 = scan completed, no violations
  1 = scan completed, violations found
  3 = fatal error (scan failed or did not run)

Examples:
  orgsentry scan --config orgsentry.yaml
  orgsentry scan --config orgsentry.yaml --db /var/lib/orgsentry/orgsentry.db --watch`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runScan())
	},
}

func runScan() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := config.NewFileProvider(scanConfigPath)
	cfg, err := provider.GetConfig(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	creds, err := githubauth.CredentialsFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	manager, err := githubauth.NewManager(creds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	client, err := gh.NewClient(ctx, manager, gh.WithVerbose(verbose, nil))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create GitHub client: %v\n", err)
		return 3
	}
	gateway := gh.NewOrgGateway(client, cfg.Organization)

	st, err := store.Open(scanDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	defer st.Close()

	sched := scheduler.New(ctx, 16)
	defer sched.Close()

	executor := remediation.NewExecutor(st, gateway, provider)
	queue := scheduler.NewRemediationQueue(sched, executor.ProcessActionsForScan)
	orch := orchestrator.New(st, gateway, provider, queue)

	var lastScanID int64
	runOnce := func(ctx context.Context) error {
		scanID, err := orch.RunScan(ctx)
		if err != nil {
			return err
		}
		lastScanID = scanID
		return printScanSummary(ctx, st, scanID)
	}
	cycle := withCycleTimeout(scanTimeout, runOnce)

	interval, repeat, err := scheduler.ParseInterval(cfg.Schedule)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}

	if scanWatch && repeat {
		err = scheduler.Every(ctx, interval, cycle, func(err error) {
			fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
		})
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 3
		}
		return 0
	}

	if err := cycle(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
		return 3
	}

	n, err := st.CountViolationsForScan(ctx, lastScanID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	if n > 0 {
		return 1
	}
	return 0
}

// withCycleTimeout bounds every invocation of fn with its own deadline, so a
// long-running watch process is never cut off by the timeout meant for one
// scan. A non-positive timeout leaves fn unbounded.
func withCycleTimeout(timeout time.Duration, fn func(context.Context) error) func(context.Context) error {
	if timeout <= 0 {
		return fn
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(ctx)
	}
}

func printScanSummary(ctx context.Context, st *store.Store, scanID int64) error {
	violations, err := st.ListViolationsForScan(ctx, scanID)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	if len(violations) == 0 {
		green.Fprintf(os.Stdout, "scan %d: all repositories compliant\n", scanID)
		return nil
	}

	red.Fprintf(os.Stdout, "scan %d: %d violations\n", scanID, len(violations))
	for _, v := range violations {
		fmt.Fprintf(os.Stdout, "  %s: %s", v.RepositoryName, v.PolicyName)
		if v.Detail != "" {
			fmt.Fprintf(os.Stdout, " (%s)", v.Detail)
		}
		fmt.Fprintf(os.Stdout, " -> %s\n", v.PolicyAction)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanConfigPath, flags.FlagConfig, "orgsentry.yaml", "Path to the policy configuration file")
	scanCmd.Flags().StringVar(&scanDBPath, flags.FlagDB, "orgsentry.db", "Path to the SQLite database")
	scanCmd.Flags().BoolVar(&scanWatch, flags.FlagWatch, false, "Keep running and rescan per the configured schedule")
	scanCmd.Flags().DurationVar(&scanTimeout, flags.FlagTimeout, 30*time.Minute, "Timeout for each scan cycle (0 disables)")
}
