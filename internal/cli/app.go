package cli

import (
	"context"
	"fmt"
	"net/http"

	"callscreen/internal/admission"
	"callscreen/internal/ai"
	"callscreen/internal/config"
	"callscreen/internal/conversation"
	"callscreen/internal/dialog"
	"callscreen/internal/errors"
	"callscreen/internal/jobs"
	"callscreen/internal/notify"
	"callscreen/internal/observability"
	"callscreen/internal/scoring"
	"callscreen/internal/server"
	"callscreen/internal/store"
	"callscreen/internal/telephony"
)

// application is the fully wired service behind the serve command.
type application struct {
	store    store.Store
	services map[config.Operation]*ai.Service
	gate     *admission.Gate
	dialog   *dialog.Orchestrator
	server   *server.Server
	watcher  *jobs.Watcher
	logger   *errors.Logger
}

func newAIServices(cfg *config.Config, logger *errors.Logger, om *observability.ObservabilityManager) (map[config.Operation]*ai.Service, error) {
	services := make(map[config.Operation]*ai.Service, len(config.Operations))
	for _, op := range config.Operations {
		opCfg, err := cfg.GetOperationConfig(op)
		if err != nil {
			closeServices(services, logger)
			return nil, err
		}
		svc, err := ai.NewService(&opCfg, op, logger, om)
		if err != nil {
			closeServices(services, logger)
			return nil, fmt.Errorf("failed to create %s AI service: %w", op, err)
		}
		services[op] = svc
	}
	return services, nil
}

func closeServices(services map[config.Operation]*ai.Service, logger *errors.Logger) {
	for op, svc := range services {
		if err := svc.Close(); err != nil {
			logger.LogError(err, "Failed to close AI service", "operation", string(op))
		}
	}
}

func newTelephonyClient(cfg *config.Config, logger *errors.Logger, om *observability.ObservabilityManager) (*telephony.Client, error) {
	return telephony.NewClient(cfg.Telephony, cfg.Server.PublicURL, om.HTTPTransport(http.DefaultTransport), logger)
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *errors.Logger, om *observability.ObservabilityManager) (*application, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	app := &application{store: st, logger: logger}

	app.services, err = newAIServices(cfg, logger, om)
	if err != nil {
		app.Close()
		return nil, err
	}

	registry := conversation.NewRegistry()
	machine := conversation.NewMachine(registry, conversation.SettingsFromConfig(cfg.Screening),
		app.services[config.OperationInterview], logger)

	var placer admission.CallPlacer
	if cfg.Telephony.Enabled {
		client, err := newTelephonyClient(cfg, logger, om)
		if err != nil {
			app.Close()
			return nil, err
		}
		placer = client
		logger.Info("Telephony enabled", "callback_url", client.CallbackURL())
	} else {
		logger.Warn("Telephony disabled, admitted candidates will not be called")
	}

	app.gate = admission.NewGate(admission.Options{
		Store:       st,
		Placer:      placer,
		Registrar:   registry,
		Scorer:      scoring.NewEngine(app.services[config.OperationExtract], logger, om),
		Threshold:   cfg.Screening.ScoreThreshold,
		Concurrency: cfg.Screening.Concurrency,
		Logger:      logger,
		Obs:         om,
	})

	app.dialog = dialog.New(dialog.Options{
		Machine:     machine,
		Transcripts: store.NewTranscriptLog(cfg.Store.TranscriptLog),
		Reporter:    app.services[config.OperationReport],
		Notifier:    notify.New(cfg.Notify, logger),
		Store:       st,
		Screening:   cfg.Screening,
		Subject:     cfg.Notify.Subject,
		Logger:      logger,
		Obs:         om,
	})

	oracles := make(map[config.Operation]server.OracleHealth, len(app.services))
	for op, svc := range app.services {
		oracles[op] = svc
	}
	app.server = server.NewServer(cfg, server.ConfigFromApp(cfg, Version), server.Dependencies{
		Store:   st,
		Gate:    app.gate,
		Dialog:  app.dialog,
		Placer:  placer,
		Oracles: oracles,
		Obs:     om,
	}, logger)

	if path := cfg.Jobs.CatalogFile; path != "" {
		if _, err := jobs.Sync(ctx, path, st, logger); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to load job catalog: %w", err)
		}
		if cfg.Jobs.Watch {
			app.watcher = jobs.NewWatcher(path, cfg.Jobs.DebounceDelay, func() {
				if _, err := jobs.Sync(context.WithoutCancel(ctx), path, st, logger); err != nil {
					logger.LogError(err, "Job catalog reload failed, keeping previous jobs", "file", path)
				}
			}, logger)
		}
	}

	return app, nil
}

// Close waits for background screenings, finalizes calls still in progress
// and waits for their reports, then releases the AI clients and the store.
func (a *application) Close() {
	if a.gate != nil {
		a.gate.Wait()
	}
	if a.dialog != nil {
		if n := a.dialog.FinalizeAll(context.Background()); n > 0 {
			a.logger.Info("Finalized calls in progress at shutdown", "count", n)
		}
		a.dialog.Wait()
	}
	closeServices(a.services, a.logger)
	if err := a.store.Close(); err != nil {
		a.logger.LogError(err, "Failed to close store")
	}
}
