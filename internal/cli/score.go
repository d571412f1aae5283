package cli

import (
	"context"
	"fmt"

	"callscreen/internal/admission"
	"callscreen/internal/ai"
	"callscreen/internal/common"
	"callscreen/internal/config"
	"callscreen/internal/errors"
	"callscreen/internal/jobs"
	"callscreen/internal/scoring"
	"callscreen/internal/store"
	"callscreen/internal/types"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score [resume.pdf]",
	Short: "Score a résumé against a job specification",
	Long: `Score a PDF résumé the way the server does before deciding whether to
place a screening call. The résumé is sent to the extraction model, the
profile is scored against the job's education, experience and skill
requirements, and the result is compared with screening.scoreThreshold.

The job is looked up by --job in the configured store, or in the TOML
catalog given with --catalog.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if scoreConfig.OutputFormat == "" {
			scoreConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(scoreConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runScore,
}

var (
	scoreConfig  common.CommandConfig
	scoreJobID   string
	scoreCatalog string
)

func init() {
	scoreCmd.Flags().StringVarP(&scoreJobID, "job", "j", "", "Job ID to score against")
	scoreCmd.Flags().StringVar(&scoreCatalog, "catalog", "", "TOML job catalog to read the job from instead of the store")
	scoreCmd.Flags().StringVarP(&scoreConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	scoreCmd.Flags().StringVar(&scoreConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	_ = scoreCmd.MarkFlagRequired("job")

	_ = scoreCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return common.NewOutputHandler(nil).GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
	})
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	job, err := resolveJob(ctx, cfg, scoreJobID, scoreCatalog)
	if err != nil {
		return err
	}

	extractCfg := cfg.GetExtractConfig()
	extractor, err := ai.NewService(&extractCfg, config.OperationExtract, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() {
		if err := extractor.Close(); err != nil {
			logger.LogError(err, "Failed to close AI service")
		}
	}()

	engine := scoring.NewEngine(extractor, logger, nil)
	threshold := cfg.Screening.ScoreThreshold

	err = common.RunDocumentCommand(ctx, logger, scoreConfig, args[0], cfg.App.MaxFileSize,
		func(ctx context.Context, doc types.Document) (scoring.Summary, error) {
			result := engine.Score(ctx, doc, job.Spec)
			return scoring.Summary{
				Resume:    doc.Name,
				JobID:     job.ID,
				JobTitle:  job.Title,
				Threshold: threshold,
				Admitted:  admission.Admit(result.Total, threshold),
				Result:    result,
			}, nil
		})
	if err != nil {
		return fmt.Errorf("failed to score résumé: %w", err)
	}
	logger.Info("Résumé scoring completed successfully", "job_id", job.ID)
	return nil
}

// resolveJob finds id in the catalog file when one is given, otherwise in
// the configured store.
func resolveJob(ctx context.Context, cfg *config.Config, id, catalog string) (*types.Job, error) {
	if catalog != "" {
		entries, err := jobs.Load(catalog)
		if err != nil {
			return nil, err
		}
		for _, job := range entries {
			if job.ID == id {
				return job, nil
			}
		}
		return nil, errors.NewValidationError(errors.ErrCodeNotFound,
			fmt.Sprintf("job %s not found in %s", id, catalog), nil)
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.GetJob(ctx, id)
}
