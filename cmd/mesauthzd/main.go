package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/mesauthz/pkg/authz"
	"github.com/platinummonkey/mesauthz/pkg/config"
	"github.com/platinummonkey/mesauthz/pkg/httputil"
	"github.com/platinummonkey/mesauthz/pkg/observability"
	"github.com/platinummonkey/mesauthz/pkg/rbac"
	"github.com/platinummonkey/mesauthz/pkg/snapshot"
)

var version = "dev"

func main() {
	rbac.MustValidateCatalog()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("mesauthzd stopped")
	}
	log.Info("mesauthzd stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		observability.ShutdownOTel(shutdownCtx, providers, log)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Snapshot source
	var (
		db         *sql.DB
		fileSource *snapshot.FileSource
		source     snapshot.Source
	)
	switch cfg.Snapshot.Source {
	case config.SourceFile:
		fileSource, err = snapshot.NewFileSource(cfg.Snapshot.File, log)
		if err != nil {
			return err
		}
		source = fileSource
		log.WithField("file", cfg.Snapshot.File).Info("serving snapshots from file")
	default:
		db, err = openDatabase(ctx, cfg.Snapshot, log)
		if err != nil {
			return err
		}
		defer db.Close()
		source = snapshot.NewSQLSource(db)
	}

	// Version store
	opts := []authz.Option{
		authz.WithLogger(log),
		authz.WithCache(cfg.Cache.Size, cfg.Cache.TTL),
	}
	if metrics != nil {
		opts = append(opts, authz.WithMetrics(metrics))
	}
	var redisVersions *snapshot.RedisVersionStore
	if cfg.Cache.RedisURL != "" {
		redisVersions, err = snapshot.NewRedisVersionStore(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return err
		}
		defer redisVersions.Close()
		opts = append(opts, authz.WithVersionStore(redisVersions))
		log.Info("sharing snapshot versions through redis")
	}

	authorizer, err := authz.NewAuthorizer(source, opts...)
	if err != nil {
		return fmt.Errorf("failed to create authorizer: %w", err)
	}

	// API server
	router := mux.NewRouter()
	if metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	authz.NewHandlers(authorizer).RegisterRoutes(router)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		authz.TrustedHeader(cfg.Server.UserHeader),
		httputil.LoggingMiddleware(log),
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
	)(router)

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(handler, "mesauthzd"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics server
	healthMux := http.NewServeMux()
	var redisClient *redis.Client
	if redisVersions != nil {
		redisClient = redisVersions.Client()
	}
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, version))
	healthMux.Handle("/metrics", observability.MetricsHandler(registry))
	healthServer := &http.Server{
		Addr:        cfg.Server.HealthAddr(),
		Handler:     healthMux,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", apiServer.Addr).Info("API server listening")
		return serve(apiServer)
	})
	g.Go(func() error {
		log.WithField("addr", healthServer.Addr).Info("health server listening")
		return serve(healthServer)
	})
	if fileSource != nil {
		g.Go(func() error {
			return fileSource.Watch(gctx, func() {
				authorizer.Purge()
				if metrics != nil {
					metrics.SnapshotReloadsTotal.Inc()
				}
			})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			apiServer.Shutdown(shutdownCtx),
			healthServer.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

func openDatabase(ctx context.Context, cfg config.SnapshotConfig, log *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.DBDriver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Migrate {
		if err := snapshot.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		if err := snapshot.NewSQLSource(db).SeedPresets(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("database migrated and preset roles seeded")
	}

	log.WithField("driver", cfg.DBDriver).Info("serving snapshots from database")
	return db, nil
}
