package cli

import (
	"fmt"

	"callscreen/internal/common"
	"callscreen/internal/jobs"
	"callscreen/internal/store"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage the job catalog",
}

var jobsSyncCmd = &cobra.Command{
	Use:   "sync [catalog.toml]",
	Short: "Load a TOML job catalog into the store",
	Long: `Insert or update every job in a TOML catalog. Without an argument the
file from jobs.catalogFile is used. Jobs missing from the file are kept.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobsSync,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored jobs",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if jobsListConfig.OutputFormat == "" {
			jobsListConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(jobsListConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runJobsList,
}

var jobsListConfig common.CommandConfig

func init() {
	jobsListCmd.Flags().StringVarP(&jobsListConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	jobsListCmd.Flags().StringVar(&jobsListConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	jobsCmd.AddCommand(jobsSyncCmd)
	jobsCmd.AddCommand(jobsListCmd)
}

func runJobsSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	path := cfg.Jobs.CatalogFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no catalog file given and jobs.catalogFile is not set")
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := jobs.Sync(ctx, path, st, logger)
	if err != nil {
		return fmt.Errorf("failed to sync job catalog after %d jobs: %w", n, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d jobs from %s\n", n, path)
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.ListJobs(ctx)
	if err != nil {
		return err
	}
	return common.NewOutputHandler(logger).HandleOutput(list, jobsListConfig)
}
