package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/coalescer"
	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/datastore"
	"github.com/lessuselesss/bounty-crawl/internal/differ"
	"github.com/lessuselesss/bounty-crawl/internal/extractor"
	"github.com/lessuselesss/bounty-crawl/internal/fetcher"
	"github.com/lessuselesss/bounty-crawl/internal/limiter"
	"github.com/lessuselesss/bounty-crawl/internal/models"
	"github.com/lessuselesss/bounty-crawl/internal/notifier"
	"github.com/lessuselesss/bounty-crawl/internal/orchestrator"
	"github.com/lessuselesss/bounty-crawl/internal/prober"
	"github.com/lessuselesss/bounty-crawl/internal/runner"
	"github.com/lessuselesss/bounty-crawl/internal/scheduler"
	"github.com/lessuselesss/bounty-crawl/internal/signalserver"
	"github.com/lessuselesss/bounty-crawl/internal/urlhandler"
)

// signalBuffer accumulates push-signalled resource ids so the next scan can
// force them into its targeted set.
type signalBuffer struct {
	mu  sync.Mutex
	set map[string]bool
}

func newSignalBuffer() *signalBuffer {
	return &signalBuffer{set: make(map[string]bool)}
}

func (sb *signalBuffer) Signal(resourceID string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.set[resourceID] = true
}

// Drain returns the buffered ids and clears the buffer.
func (sb *signalBuffer) Drain() map[string]bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	drained := sb.set
	sb.set = make(map[string]bool)
	return drained
}

// fanoutSink forwards each signal to every registered sink.
type fanoutSink struct {
	sinks []signalserver.SignalSink
}

func (fs *fanoutSink) Signal(resourceID string) {
	for _, sink := range fs.sinks {
		sink.Signal(resourceID)
	}
}

// application owns every long-lived component and their shutdown order.
type application struct {
	cfg       *config.GlobalConfig
	logger    zerolog.Logger
	resources []config.WatchedResource

	fingerprints  *datastore.FingerprintStore
	snapshots     *datastore.SnapshotStore
	changeLog     *datastore.ChangeLogWriter
	history       *scheduler.HistoryStore
	renderFetcher *fetcher.RenderFetcher
	resLimiter    *limiter.ResourceLimiter
	batchCoal     *coalescer.Coalescer
	webhook       *notifier.WebhookNotifier
	signalSrv     *signalserver.Server
	pushSignals   *signalBuffer
	scanRunner    *runner.Runner
}

func newApplication(cfg *config.GlobalConfig, logger zerolog.Logger) (*application, error) {
	app := &application{
		cfg:         cfg,
		logger:      logger,
		pushSignals: newSignalBuffer(),
	}

	app.resources = cfg.ResourcesConfig.ValidResources(logger)
	if len(app.resources) == 0 {
		return nil, common.WrapError(common.ErrInvalidConfiguration, "no valid watched resources configured")
	}

	var err error
	if app.fingerprints, err = datastore.NewFingerprintStore(cfg.StorageConfig.FingerprintDBPath, logger); err != nil {
		return nil, err
	}
	if app.snapshots, err = datastore.NewSnapshotStore(cfg.StorageConfig.SnapshotDir, cfg.StorageConfig.CompressionCodec, logger); err != nil {
		app.close()
		return nil, err
	}
	if app.changeLog, err = datastore.NewChangeLogWriter(cfg.StorageConfig.ChangesDir, logger); err != nil {
		app.close()
		return nil, err
	}
	if app.history, err = scheduler.NewHistoryStore(cfg.SchedulerConfig.SQLitePath, logger); err != nil {
		app.close()
		return nil, err
	}

	app.webhook = notifier.NewWebhookNotifier(cfg.NotificationConfig, logger)
	app.batchCoal = coalescer.NewCoalescer(cfg.CoalescerConfig, app.webhook, nil, logger)
	app.resLimiter = limiter.NewResourceLimiter(cfg.LimiterConfig, logger)

	backends, renderFetcher, err := buildBackends(cfg.FetcherConfig, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	app.renderFetcher = renderFetcher

	orch, err := orchestrator.NewOrchestratorBuilder(logger).
		WithConfig(cfg.OrchestratorConfig).
		WithBackends(backends).
		WithDispatchGate(app.resLimiter).
		Build()
	if err != nil {
		app.close()
		return nil, err
	}

	entityExtractor, err := extractor.NewExtractor(cfg.ExtractorConfig, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	resolver := urlhandler.NewResourceResolver(app.resources)
	app.signalSrv = signalserver.NewServer(cfg.SignalConfig, resolver, &fanoutSink{
		sinks: []signalserver.SignalSink{app.batchCoal, app.pushSignals},
	}, logger)

	app.scanRunner, err = runner.NewRunner(runner.Deps{
		Resources:    app.resources,
		Orchestrator: orch,
		Extractor:    entityExtractor,
		Detector:     differ.NewChangeDetector(cfg.DiffConfig, logger),
		Signatures:   differ.NewSignatureGenerator(cfg.DiffConfig),
		Fingerprints: app.fingerprints,
		Snapshots:    app.snapshots,
		Scheduler:    scheduler.NewScheduler(cfg.SchedulerConfig, app.history, logger),
		History:      app.history,
		Prober:       prober.NewProber(cfg.ProberConfig, logger),
		Signals:      app.batchCoal,
		Reporter:     app.webhook,
	}, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	return app, nil
}

// buildBackends instantiates the fetch backends in the configured preference
// order.
func buildBackends(cfg config.FetcherConfig, logger zerolog.Logger) ([]fetcher.Fetcher, *fetcher.RenderFetcher, error) {
	var (
		backends      []fetcher.Fetcher
		renderFetcher *fetcher.RenderFetcher
	)
	for _, name := range cfg.BackendOrder {
		switch name {
		case "render":
			if !cfg.Render.Enabled {
				continue
			}
			renderFetcher = fetcher.NewRenderFetcher(cfg.Render, logger)
			backends = append(backends, renderFetcher)
		case "ai":
			if !cfg.AIExtract.Enabled {
				continue
			}
			backends = append(backends, fetcher.NewAIFetcher(cfg.AIExtract, logger))
		case "http":
			backends = append(backends, fetcher.NewHTTPFetcher(cfg.HTTP, logger))
		default:
			return nil, nil, common.NewError("unknown fetch backend in backend_order: %s", name)
		}
	}
	if len(backends) == 0 {
		backends = append(backends, fetcher.NewHTTPFetcher(cfg.HTTP, logger))
	}
	return backends, renderFetcher, nil
}

// start brings up the long-lived components used by both modes.
func (app *application) start() error {
	app.resLimiter.Start()
	if app.renderFetcher != nil {
		if err := app.renderFetcher.Start(); err != nil {
			return err
		}
	}
	return nil
}

// close releases everything in reverse start order. Safe on partially
// constructed applications.
func (app *application) close() {
	if app.renderFetcher != nil {
		app.renderFetcher.Stop()
	}
	if app.resLimiter != nil {
		app.resLimiter.Stop()
	}
	if app.history != nil {
		_ = app.history.Close()
	}
	if app.fingerprints != nil {
		_ = app.fingerprints.Close()
	}
}

// scanInterval derives the automated-mode cadence from the tightest resource
// tier in play.
func (app *application) scanInterval() time.Duration {
	shortest := time.Duration(0)
	for _, resource := range app.resources {
		interval := time.Duration(resource.EffectivePollInterval()) * time.Second
		if shortest == 0 || interval < shortest {
			shortest = interval
		}
	}
	if shortest < time.Minute {
		shortest = time.Minute
	}
	return shortest
}

// runAutomated loops scan runs on the derived cadence with the signal server
// and coalescer running alongside, until the context is cancelled.
func (app *application) runAutomated(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.batchCoal.Run(ctx)
	}()

	if app.cfg.SignalConfig.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.signalSrv.Start(); err != nil {
				app.logger.Error().Err(err).Msg("Signal server terminated")
			}
		}()
	}

	interval := app.scanInterval()
	app.logger.Info().Dur("scan_interval", interval).Msg("Automated mode started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	app.runScan(ctx)
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = app.signalSrv.Shutdown(shutdownCtx)
			cancel()
			wg.Wait()
			return
		case <-ticker.C:
			app.runScan(ctx)
		}
	}
}

func (app *application) runScan(ctx context.Context) int {
	summary, changes, err := app.scanRunner.Run(ctx, app.pushSignals.Drain())
	if err != nil {
		app.logger.Error().Err(err).Msg("Scan run failed before processing any resource")
		return 2
	}
	if _, err := app.changeLog.Write(changes); err != nil {
		app.logger.Error().Err(err).Str("run_id", summary.RunID).Msg("Failed to archive run change set")
	}
	switch summary.Status {
	case models.RunStatusSuccess:
		return 0
	case models.RunStatusPartial:
		return 1
	default:
		return 2
	}
}
