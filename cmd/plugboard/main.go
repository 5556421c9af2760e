package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/plugboard/plugboard/pkg/config"
	"github.com/plugboard/plugboard/pkg/httpapi"
	"github.com/plugboard/plugboard/pkg/identity"
	"github.com/plugboard/plugboard/pkg/observability"
	"github.com/plugboard/plugboard/pkg/plugin"
	"github.com/plugboard/plugboard/pkg/sso"
	"github.com/plugboard/plugboard/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, true)
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, log)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	st, db, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnf("Redis unreachable, deletion events stay in-process: %v", err)
		}
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	// Discovery and first composition run to completion before the
	// host serves a single request.
	registry := plugin.NewRegistry(&plugin.Snapshot{})
	recomposer := plugin.NewRecomposer(
		plugin.NewDiscovery(st, log), st, registry,
		cfg.Plugins.Root, cfg.Auth.SuperAdminID, log,
	)
	recomposer.SetMetrics(metrics)
	if err := recomposer.Run(ctx); err != nil {
		log.Fatalf("Failed to compose extensions: %v", err)
	}

	strategies, attributes, err := loadStrategies(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to load SSO strategies: %v", err)
	}

	resolver := identity.NewResolver(st, cfg.Auth.SuperAdminID, attributes, log)
	resolver.SetMetrics(metrics)
	notifier := identity.NewNotifier(rdb, log)
	tokens := httpapi.NewTokenManager(st)
	notifier.OnDeletion(func(ctx context.Context, ids []string) {
		if err := tokens.RevokeUser(ctx, ids); err != nil {
			log.Errorf("Failed to revoke tokens for deleted users: %v", err)
		}
	})

	handlers := httpapi.NewHandlers(registry, resolver, notifier, tokens, strategies, metrics, log)
	server := httpapi.NewServer(cfg.Server, httpapi.ServerDeps{
		Handlers: handlers,
		Auth:     httpapi.NewAuthMiddleware(tokens, resolver, log),
		Authz:    httpapi.NewAuthzMiddleware(registry, metrics),
		Metrics:  metrics,
		Health:   observability.NewHealthChecker(db, rdb),
		Log:      log,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Plugins.Watch {
		watcher := plugin.NewWatcher(cfg.Plugins.Root, cfg.Plugins.WatchDebounce, func(ctx context.Context) {
			if err := recomposer.Run(ctx); err != nil {
				log.Errorf("Recomposition after filesystem change failed: %v", err)
			}
		}, log)
		go func() {
			if err := watcher.Run(runCtx); err != nil {
				log.Errorf("Extension watcher stopped: %v", err)
			}
		}()
	}

	var scheduler *cron.Cron
	if cfg.Plugins.RecomposeSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Plugins.RecomposeSchedule, func() {
			if err := recomposer.Run(runCtx); err != nil {
				log.Errorf("Scheduled recomposition failed: %v", err)
			}
		})
		if err != nil {
			log.Fatalf("Invalid recomposition schedule %q: %v", cfg.Plugins.RecomposeSchedule, err)
		}
		scheduler.Start()
	}

	go func() {
		log.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	observability.GracefulShutdown(log, server, cfg.Server.ShutdownTimeout,
		func(ctx context.Context) error {
			cancel()
			if scheduler != nil {
				scheduler.Stop()
			}
			return nil
		},
		func(ctx context.Context) error {
			if rdb != nil {
				return rdb.Close()
			}
			return nil
		},
		func(ctx context.Context) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
		shutdownTracing,
	)
}

// openStore builds the configured store backend. The *sql.DB is
// returned separately for health checks and shutdown; it is nil for
// the memory backend.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.Store, *sql.DB, error) {
	switch cfg.Store.Type {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgres(db, log)
		if err := pg.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		log.Info("Using postgres store")
		return pg, db, nil
	default:
		log.Warn("Using in-memory store; all data is lost on restart")
		return store.NewMemory(
			store.WithUniqueIndex("users", "origin", "originId"),
		), nil, nil
	}
}

// loadStrategies instantiates the enabled SSO strategies and collects
// their attribute maps for the resolver.
func loadStrategies(ctx context.Context, cfg *config.Config, log *logrus.Logger) (map[string]sso.Strategy, map[string]identity.AttributeMap, error) {
	if cfg.Auth.SSOConfigFile == "" {
		return nil, nil, nil
	}
	if _, err := os.Stat(cfg.Auth.SSOConfigFile); err != nil {
		return nil, nil, err
	}

	configs, err := sso.LoadStrategies(cfg.Auth.SSOConfigFile)
	if err != nil {
		return nil, nil, err
	}

	strategies := map[string]sso.Strategy{}
	attributes := map[string]identity.AttributeMap{}
	for _, sc := range configs {
		if !sc.Enabled {
			log.Infof("SSO strategy %s is disabled, skipping", sc.ID)
			continue
		}
		strategy, err := sso.NewStrategy(ctx, sc, cfg.Server.BaseURL)
		if err != nil {
			return nil, nil, err
		}
		strategies[sc.ID] = strategy
		attributes[sc.ID] = sc.Attributes
		log.Infof("SSO strategy %s (%s) ready", sc.ID, sc.Type)
	}
	return strategies, attributes, nil
}
