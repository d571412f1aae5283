package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"callscreen/internal/errors"
	"callscreen/internal/observability"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the screening server",
	Long: `Start the HTTP server that accepts applications, places screening calls
and answers the telephony voice webhook.

Available endpoints:
- POST /voice: telephony turn webhook (form fields CallSid, SpeechResult)
- GET /api/jobs, POST /api/jobs/{id}/apply: job board and applications
- /api/applications, /api/calls: HR API (requires an API key)
- GET /health: model availability and circuit breaker state
- GET /stats: active sessions, store counts and rate limiting

The telephony provider must reach this server on server.publicURL, usually
through a tunnel or ingress that terminates TLS.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("public-url", "", "Externally reachable base URL for webhooks (overrides config)")
	serveCmd.Flags().String("jobs", "", "TOML job catalog to load at startup (overrides config)")

	// Bind flags to viper config keys
	bindFlag := func(key, flagName string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}

	bindFlag("server.port", "port")
	bindFlag("server.host", "host")
	bindFlag("server.publicURL", "public-url")
	bindFlag("jobs.catalogFile", "jobs")
}

// applyServeFlags copies explicitly set flags onto the loaded config, which
// was read before cobra parsed the command line.
func applyServeFlags(cmd *cobra.Command) {
	cfg := getConfigFromContext(cmd.Context())
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = viper.GetString("server.port")
	}
	if flags.Changed("host") {
		cfg.Server.Host = viper.GetString("server.host")
	}
	if flags.Changed("public-url") {
		cfg.Server.PublicURL = strings.TrimRight(viper.GetString("server.publicURL"), "/")
	}
	if flags.Changed("jobs") {
		cfg.Jobs.CatalogFile = viper.GetString("jobs.catalogFile")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	applyServeFlags(cmd)
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	ctx := cmd.Context()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer shutdownObservability(om, logger)

	app, err := buildApplication(ctx, cfg, logger, om)
	if err != nil {
		return err
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.server.Run(gctx) })
	g.Go(func() error { return app.dialog.RunReaper(gctx) })
	if app.watcher != nil {
		g.Go(func() error { return app.watcher.Run(gctx) })
	}

	logger.Info("Callscreen started", "version", Version, "threshold", cfg.Screening.ScoreThreshold)
	return g.Wait()
}

// shutdownObservability handles observability cleanup
func shutdownObservability(om *observability.ObservabilityManager, logger *errors.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		logger.LogError(err, "Failed to shutdown observability")
	}
}
