package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/guide/internal/config"
	"github.com/MrSnakeDoc/guide/internal/domain"
	"github.com/MrSnakeDoc/guide/internal/httpserver"
	"github.com/MrSnakeDoc/guide/internal/httpserver/deps"
	"github.com/MrSnakeDoc/guide/internal/index"
	"github.com/MrSnakeDoc/guide/internal/ingest"
	"github.com/MrSnakeDoc/guide/internal/logger"
	"github.com/MrSnakeDoc/guide/internal/scheduler"
	"github.com/MrSnakeDoc/guide/internal/sources/loader"
	"github.com/MrSnakeDoc/guide/internal/sources/m3u"
	"github.com/MrSnakeDoc/guide/internal/sources/xmltv"
	"github.com/MrSnakeDoc/guide/internal/store"
	"github.com/MrSnakeDoc/guide/internal/utils"
	"github.com/MrSnakeDoc/guide/internal/version"
)

type App struct {
	cfg           *config.Config
	logger        logger.Logger
	server        *httpserver.Server
	durableCloser io.Closer
	reloader      *scheduler.GuideReloader
	janitor       *scheduler.Janitor
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loggerClient.Warn("unknown timezone, using local time",
			logger.String("timezone", cfg.Timezone), logger.Error(err))
		loc = time.Local
	}

	// The durable tier is optional: a backend that cannot be reached
	// downgrades the service to memory-only instead of stopping it.
	backend := cfg.DurableBackend
	dur, durCloser, err := openDurable(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Warn("durable backend unavailable, running memory-only",
			logger.String("backend", backend), logger.Error(err))
		backend = config.BackendNone
		dur, durCloser = nil, nil
	}

	var storeDurable store.Durable = store.NopDurable{}
	var durablePing func(context.Context) error
	if dur != nil {
		storeDurable = dur
		durablePing = dur.Ping
		loggerClient.Info("durable backend ready", logger.String("backend", backend))
	}

	guideStore := store.New(cfg.CacheTTL, storeDurable, loggerClient)
	memIndex := index.NewMemoryIndex()

	// Serve the last known catalog until the first reload completes.
	syncer := scheduler.NewSnapshotSyncer(storeDurable, memIndex, loggerClient)
	if err := syncer.Sync(context.Background()); err != nil {
		loggerClient.Warn("failed to restore guide snapshot, waiting for first reload",
			logger.Error(err))
	}

	matchOpts := &domain.MatchOptions{
		CountryAttrKey: cfg.CountryAttr,
		MinSimilarity:  domain.Threshold(cfg.MinSimilarity),
	}

	pipeline := ingest.New(ingest.Options{
		Fetcher: loader.New(cfg.FetchTimeout, cfg.UserAgent, loggerClient),
		XMLTV: xmltv.New(xmltv.Options{
			Untitled: cfg.UntitledLabel,
			Log:      loggerClient,
		}),
		Embedded: m3u.NewGuideParser(m3u.GuideOptions{
			Location:      loc,
			ExternalLabel: cfg.ExternalLabel,
			Log:           loggerClient,
		}),
		Store:   guideStore,
		Index:   memIndex,
		Durable: storeDurable,
		Match:   matchOpts,
		Log:     loggerClient,
	})

	reloadTrigger := make(chan struct{}, 1)
	reloader := scheduler.NewGuideReloader(cfg.ManifestFile, pipeline, loggerClient, reloadTrigger)
	janitor := scheduler.NewJanitor(guideStore, loggerClient, cfg.PruneInterval)

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		MatchBurst:        cfg.MatchBurst,
		MatchRefillPerMin: cfg.MatchRefillPerMin,
		MemoryIndex:       memIndex,
		GuideStore:        guideStore,
		Match:             matchOpts,
		DurableBackend:    backend,
		DurablePing:       durablePing,
		ReloadTrigger:     reloadTrigger,
		LastReloadErr:     reloader.LastError,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:           cfg,
		logger:        loggerClient,
		server:        server,
		durableCloser: durCloser,
		reloader:      reloader,
		janitor:       janitor,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting guide v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("guide %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load runs in the background so the listener is up while
	// remote guides download.
	go func() {
		if err := a.reloader.Start(ctx); err != nil {
			a.logger.Error("failed to start guide reloader", logger.Error(err))
		}
	}()

	if err := a.janitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.janitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.durableCloser != nil {
		utils.CloseLogged(a.durableCloser, a.cfg.DurableBackend, a.logger)
	}

	a.logger.Info("✅ guide stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
