package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"genguard/internal/config"
	"genguard/internal/diagnosis"
	"genguard/internal/generation"
	"genguard/internal/historystore"
	"genguard/internal/logging"
	"genguard/internal/metrics"
	"genguard/internal/notifications"
	"genguard/internal/retry"
	"genguard/internal/stats"
	"genguard/internal/triggers"
)

// runtime wires the orchestrator and its collaborators for one command.
type runtime struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *historystore.Store
	tracker      *stats.Tracker
	metrics      *metrics.Metrics
	notifier     notifications.Notifier
	orchestrator *retry.Orchestrator
}

func (c *commandContext) openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	registry, err := triggers.LoadRegistry(cfg.Triggers.EntitiesFile)
	if err != nil {
		return nil, fmt.Errorf("load entity table: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(),
		notifier: notifications.NewService(cfg),
	}

	// The history database is optional: generations still run without it.
	var statsStore stats.Store
	store, err := historystore.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "history store unavailable", "history_open_failed",
			logging.Error(err),
			logging.String("path", cfg.HistoryDBPath()),
			logging.String(logging.FieldErrorHint, "check paths.data_dir permissions"),
			logging.String(logging.FieldImpact, "stats and analyses are not persisted for this run"),
		)
	} else {
		rt.store = store
		statsStore = store
	}

	rt.tracker = stats.NewTracker(statsStore, stats.WithLogger(logger))
	_ = rt.tracker.Load(ctx)

	client := generation.NewHTTPClient(generation.Config{
		APIKey:         cfg.Generation.APIKey,
		BaseURL:        cfg.Generation.BaseURL,
		TimeoutSeconds: cfg.Generation.TimeoutSeconds,
		PollInterval:   time.Duration(cfg.Generation.PollIntervalSeconds) * time.Second,
		JobTimeout:     time.Duration(cfg.Generation.JobTimeoutSeconds) * time.Second,
	})
	analyzer := diagnosis.NewAnalyzer(registry, diagnosis.WithLogger(logger))

	opts := []retry.Option{
		retry.WithTracker(rt.tracker),
		retry.WithMetrics(rt.metrics),
		retry.WithLogger(logger),
	}
	if rt.store != nil {
		opts = append(opts, retry.WithAnalysisSink(rt.store))
	}
	rt.orchestrator, err = retry.New(retry.PolicyFromConfig(cfg), generation.NewGenerator(client), analyzer, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// notifyTerminal publishes an exhausted request. Delivery problems are logged only.
func (rt *runtime) notifyTerminal(ctx context.Context, err error) {
	var terminal *retry.TerminalError
	if !errors.As(err, &terminal) {
		return
	}
	failure := notifications.TerminalFailure{
		Attempts: len(terminal.AttemptHistory),
		Err:      terminal.Err,
	}
	if terminal.LastAnalysis != nil {
		failure.RequestID = terminal.LastAnalysis.RequestID
		failure.Category = string(terminal.LastAnalysis.Category)
	}
	if notifyErr := rt.notifier.NotifyTerminalFailure(ctx, failure); notifyErr != nil {
		logging.WarnWithContext(rt.logger, "terminal failure notification failed", "notify_failed",
			logging.Error(notifyErr),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "operator not alerted"),
		)
	}
}

func (rt *runtime) Close() {
	if rt == nil || rt.store == nil {
		return
	}
	_ = rt.store.Close()
}
