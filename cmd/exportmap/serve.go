package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"exportmap/internal/api"
	"exportmap/pkg/bibliography"
	"exportmap/pkg/cache"
	"exportmap/pkg/config"
	"exportmap/pkg/contact"
	"exportmap/pkg/core"
	"exportmap/pkg/dataset"
	"exportmap/pkg/db"
	"exportmap/pkg/db/maintenance"
	"exportmap/pkg/geo"
	"exportmap/pkg/logging"
	"exportmap/pkg/normalize"
	"exportmap/pkg/probe"
	"exportmap/pkg/request"
	"exportmap/pkg/session"
	"exportmap/pkg/source"
	"exportmap/pkg/store"
	"exportmap/pkg/tracker"
	"exportmap/pkg/version"
	"exportmap/pkg/viewstate"
)

func run(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Exportmap Started", "version", version.Version, "source", appCfg.Source.Kind)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	maintenance.Run(ctx, st, dbConn, maintenanceOptions(appCfg))

	tr := tracker.New()
	prov := config.NewProvider(appCfg, st)
	reqClient := newRequestClient(appCfg, cache.NewSQLiteCache(dbConn, appCfg.DB.CacheMaxAge.Std()), tr)

	src, closeSrc, err := initSource(ctx, appCfg, reqClient, st)
	if err != nil {
		return err
	}
	defer closeSrc()

	repo := dataset.New(src,
		dataset.WithNormalizer(normalize.New(
			normalize.WithSeed(prov.NarrativeSeed(ctx)),
			normalize.WithTimeframe(appCfg.Dataset.Timeframe),
		)),
		dataset.WithFetchTimeout(appCfg.Dataset.FetchTimeout.Std()),
		dataset.WithTracker(tr),
	)
	// Warm the cache so the first visitor doesn't pay for the fetch.
	go func() {
		if _, err := repo.Snapshot(ctx); err != nil {
			slog.Debug("Initial dataset load cancelled", "error", err)
		}
	}()

	sessions, err := initSessionStore(ctx, appCfg)
	if err != nil {
		return err
	}
	defer sessions.close()

	reg := session.NewRegistry(sessions.store, st, viewOptions(ctx, prov), tr)
	reg.SetOptionsSource(func() viewstate.Options { return viewOptions(context.Background(), prov) })
	reg.SetSecureCookie(appCfg.Server.SecureCookies)

	probes := startupProbes(appCfg, dbConn, sessions)
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	contactH := api.NewContactHandler(newContactService(appCfg, st, tr), appCfg.Server.RateLimit.PerMinute, appCfg.Server.RateLimit.Burst)
	titles := bibliography.New(reqClient, cache.NewSQLiteCache(dbConn, appCfg.DB.CacheMaxAge.Std()),
		bibliography.WithTimeout(appCfg.Bibliography.Timeout.Std()),
		bibliography.WithConcurrency(appCfg.Bibliography.Concurrency),
		bibliography.WithTracker(tr),
	)

	sched := setupScheduler(appCfg, prov, dbConn, repo, reg, sessions, contactH)
	go sched.Start(ctx)

	handlers := api.Handlers{
		Health:   api.NewHealthHandler(probes, repo.Status),
		Datasets: api.NewDatasetHandler(repo),
		Geo:      api.NewGeoHandler(geo.NewLocator()),
		View:     api.NewViewHandler(ctx, reg, repo),
		Contact:  contactH,
		Sources:  api.NewSourcesHandler(titles),
	}
	if appCfg.Metrics.Enabled {
		handlers.Metrics = tr.Handler()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(appCfg.Server.Address, handlers, appCfg.Server.StaticDir, shutdownFunc)
	return runServerLifecycle(ctx, srv, quit)
}

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func maintenanceOptions(appCfg *config.Config) maintenance.Options {
	return maintenance.Options{
		ImportFile:  appCfg.Source.ImportFile,
		CacheMaxAge: appCfg.DB.CacheMaxAge.Std(),
		StatePrefix: viewstate.SnapshotKey,
		StateMaxAge: appCfg.View.SnapshotTTL.Std(),
	}
}

func newRequestClient(appCfg *config.Config, c cache.Cacher, tr *tracker.Tracker) *request.Client {
	rc := appCfg.Request
	return request.New(c, tr,
		request.WithTimeout(rc.Timeout.Std()),
		request.WithRetries(rc.Retries, rc.Backoff.BaseDelay.Std()),
		request.WithBackoff(request.NewProviderBackoff(rc.Backoff.BaseDelay.Std(), rc.Backoff.MaxDelay.Std())),
	)
}

// initSource builds the configured row source. The returned func releases it.
func initSource(ctx context.Context, appCfg *config.Config, rc *request.Client, st *store.SQLiteStore) (source.RowSource, func(), error) {
	sc := appCfg.Source
	noop := func() {}
	switch sc.Kind {
	case "rest":
		return source.NewREST(rc, sc.URL, sc.Table, sc.Key, sc.PageSize), noop, nil
	case "postgres":
		pg, err := source.NewPostgres(ctx, sc.DatabaseURL, sc.Table)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect row source: %w", err)
		}
		return pg, pg.Close, nil
	case "sqlite":
		return source.NewSQLite(st), noop, nil
	case "static":
		return source.NewStatic(dataset.FallbackRows()), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

// sessionStores is the short-lived snapshot store and its maintenance hooks.
type sessionStores struct {
	store  store.StateStore
	pruner core.Pruner  // nil when the backend expires keys itself
	pinger probe.Pinger // nil for the in-process store
	close  func()
}

func initSessionStore(ctx context.Context, appCfg *config.Config) (*sessionStores, error) {
	sc := appCfg.Session
	switch sc.Store {
	case "", "memory":
		mem := store.NewMemoryStateStore(sc.TTL.Std())
		return &sessionStores{store: mem, pruner: mem, close: func() {}}, nil
	case "redis":
		rs, err := store.NewRedisStateStore(ctx, sc.RedisAddr, sc.RedisPassword, sc.RedisDB, sc.TTL.Std())
		if err != nil {
			return nil, fmt.Errorf("failed to connect session store: %w", err)
		}
		return &sessionStores{
			store:  rs,
			pinger: probe.PingFunc(rs.Ping),
			close: func() {
				if err := rs.Close(); err != nil {
					slog.Warn("Failed to close session store", "error", err)
				}
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", sc.Store)
	}
}

// viewOptions reads camera settings through the provider so runtime
// overrides in the state table take effect for new sessions.
func viewOptions(ctx context.Context, prov config.Provider) viewstate.Options {
	opts := viewstate.DefaultOptions()
	opts.DetailZoom = prov.DetailZoom(ctx)
	opts.FlyDuration = prov.FlyDuration(ctx)
	opts.SnapshotTTL = prov.SnapshotTTL(ctx)
	lng, lat, zoom := prov.DefaultCamera(ctx)
	opts.DefaultCamera = viewstate.NewCamera(lng, lat, zoom)
	return opts
}

func newContactService(appCfg *config.Config, st *store.SQLiteStore, tr *tracker.Tracker) *contact.Service {
	cc := appCfg.Contact
	if cc.WebhookURL == "" {
		slog.Warn("No contact webhook configured; submissions are only logged")
		return contact.NewService(st, contact.LogSink{}, tr)
	}
	// One attempt: the visitor sees a retryable error instead of waiting.
	client := request.New(cache.NewMemory(), tr,
		request.WithTimeout(cc.Timeout.Std()),
		request.WithRetries(1, 0),
	)
	headers := map[string]string{}
	if cc.WebhookToken != "" {
		headers["Authorization"] = "Bearer " + cc.WebhookToken
	}
	return contact.NewService(st, contact.NewWebhookSink(client, cc.WebhookURL, headers), tr)
}

func startupProbes(appCfg *config.Config, dbConn *db.DB, sessions *sessionStores) []probe.Probe {
	probes := []probe.Probe{
		{Name: "Database", Check: probe.Ping(dbConn), Critical: true},
		{Name: "Log Directory", Check: probe.WritableDir(filepath.Dir(appCfg.Log.Server.Path))},
	}
	if sessions.pinger != nil {
		probes = append(probes, probe.Probe{Name: "Session Store", Check: probe.Ping(sessions.pinger), Critical: true})
	}
	return probes
}

func setupScheduler(appCfg *config.Config, prov config.Provider, dbConn *db.DB, repo *dataset.Repository, reg *session.Registry, sessions *sessionStores, contactH *api.ContactHandler) *core.Scheduler {
	sched := core.NewScheduler(core.DefaultTick)
	sc := appCfg.Session

	sched.AddJob(core.NewDatasetRefreshJob(prov, repo))
	sched.AddJob(core.NewSessionEvictionJob(reg, sc.EvictInterval.Std(), sc.MaxIdle.Std(), sessions.pruner))
	sched.AddJob(core.NewStatePruneJob(dbConn, sc.PruneInterval.Std(), maintenanceOptions(appCfg)))
	sched.AddJob(core.NewTimeJob("RateLimitSweep", sc.EvictInterval.Std(), func(_ context.Context, _ time.Time) {
		if n := contactH.Sweep(sc.MaxIdle.Std()); n > 0 {
			slog.Debug("RateLimitSweep: forgot idle clients", "count", n)
		}
	}))

	slog.Info("Scheduler configured", "jobs", sched.Jobs())
	return sched
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
