package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/parapet/portal/pkg/config"
	"github.com/parapet/portal/pkg/httputil"
	"github.com/parapet/portal/pkg/observability"
	"github.com/parapet/portal/pkg/permission"
	"github.com/parapet/portal/pkg/portal"
	"github.com/parapet/portal/pkg/provision"
	"github.com/parapet/portal/pkg/resolver"
	"github.com/parapet/portal/pkg/session"
	"github.com/parapet/portal/pkg/sitetemplate"
	"github.com/parapet/portal/pkg/store"
	"github.com/parapet/portal/pkg/visibility"
)

// Layout requests carry form parameters, never uploads.
const maxRequestBodyBytes = 1 << 20

func main() {
	migrate := flag.Bool("migrate", true, "Run schema migrations on startup")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(nil)

	pg, err := store.NewPostgresStore(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer pg.Close()

	if *migrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := store.Migrate(ctx, pg.DB()); err != nil {
			logger.WithError(err).Error("failed to run store migrations")
			os.Exit(1)
		}
		if err := permission.Migrate(ctx, pg.DB()); err != nil {
			logger.WithError(err).Error("failed to run permission migrations")
			os.Exit(1)
		}
	}

	var st store.Store = pg
	var cached *store.CachedStore
	if cfg.Storage.RedisAddr != "" {
		cached, err = store.NewCachedStore(pg, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis cache")
			os.Exit(1)
		}
		st = cached
		logger.WithField("addr", cfg.Storage.RedisAddr).Info("layout cache enabled")
	}

	var sessions session.Store
	if cfg.Session.RedisAddr != "" {
		sessions = session.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		}), cfg.Session.TTL)
	} else {
		logger.Warn("no session redis configured, using in-memory sessions")
		sessions = session.NewMemoryStore()
	}

	settings, err := store.NewGroupSettingsCache(st, 1024)
	if err != nil {
		logger.WithError(err).Error("failed to build group settings cache")
		os.Exit(1)
	}

	archives := provision.NewArchiveState(logger,
		cfg.Provision.Private.ArchivePath, cfg.Provision.Public.ArchivePath)
	if err := archives.Watch(); err != nil {
		logger.WithError(err).Warn("archive watcher unavailable, validation is startup-only")
	}
	defer archives.Close()

	roles := permission.NewDBRoleService(pg.DB())
	provisioner := provision.NewProvisioner(st, roles, cfg.Provision, archives, nil, logger, metrics)

	evaluator := visibility.NewEvaluator(st, st, st,
		visibility.WithStrictMembership(cfg.Portal.StrictOrganizationMembership),
		visibility.WithMetrics(metrics))

	prototypes := sitetemplate.NewPrototypePolicy(st)
	sync := sitetemplate.NewSynchronizer(prototypes, prototypes, sitetemplate.NewSettingsCopier(st), st)

	res := resolver.New(st, evaluator, sync, logger, metrics)
	merger := resolver.NewMerger(st, settings, res, logger, metrics)

	checkers := func(userID, companyID int64) permission.Checker {
		return permission.NewDBChecker(pg.DB(), userID, companyID)
	}

	pipeline := portal.NewPipeline(st, sessions, checkers, provisioner, res, merger, nil,
		portal.Options{
			SessionCookie:            cfg.Session.CookieName,
			CacheDisabledForSignedIn: cfg.Portal.CacheDisabledForSignedIn,
			AvailableLocales:         cfg.Portal.AvailableLocales,
		}, logger, metrics)

	router := mux.NewRouter()
	router.Use(httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		observability.PanicRecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(maxRequestBodyBytes),
	))
	router.HandleFunc(portal.CanonicalLayoutPath, pipeline.ServicePre).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/", pipeline.ServicePre).Methods(http.MethodGet)

	health := observability.NewHealthChecker(observability.Dependency{
		Name:  "postgres",
		Check: st.HealthCheck,
	})
	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", health.Liveness)
	healthRouter.HandleFunc("/readyz", health.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", metrics.Handler())
	}

	mainServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      metrics.InstrumentHandler("portal", router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, mainServer, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		if cached != nil {
			return cached.Close()
		}
		return nil
	})

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		logger.WithField("addr", mainServer.Addr).Info("portal server listening")
		if err := mainServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}
