package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/classroom/pkg/api"
	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/config"
	"github.com/platinummonkey/classroom/pkg/middleware"
	"github.com/platinummonkey/classroom/pkg/observability"
	"github.com/platinummonkey/classroom/pkg/rbac"
	"github.com/platinummonkey/classroom/pkg/storage"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "classroom: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "classroom")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("classroom stopped with error")
		os.Exit(1)
	}
	logger.Info("classroom stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx = observability.WithLogger(ctx, logger)

	tp, err := observability.InitTracing(ctx, cfg.Observability.Tracing, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.ShutdownTracing(shutdownCtx, tp, logger)
	}()

	// Storage
	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db, cfg.Storage.Driver); err != nil {
		return err
	}
	store := storage.NewSQLStore(db, cfg.Storage.Driver)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Authentication
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if cfg.Auth.AdminPassword != "" {
		created, err := auth.SeedAdmin(ctx, store, hasher, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
		if created {
			logger.WithField("username", cfg.Auth.AdminUsername).Info("default admin created")
		}
	}
	if _, err := warnIfNoAdmin(ctx, store, logger); err != nil {
		return err
	}

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		SigningKey: []byte(cfg.Auth.JWTSecret),
		TTL:        cfg.Auth.TokenTTL,
		Issuer:     cfg.Auth.TokenIssuer,
	})
	if err != nil {
		return err
	}

	resolverOpts := []auth.ResolverOption{auth.WithResolverMetrics(metrics)}
	if cfg.Auth.PrincipalCacheTTL > 0 {
		resolverOpts = append(resolverOpts,
			auth.WithPrincipalCache(auth.NewPrincipalCache(cfg.Auth.PrincipalCacheSize, cfg.Auth.PrincipalCacheTTL)))
	}
	resolver := auth.NewIdentityResolver(codec, store, resolverOpts...)

	verifier, err := auth.NewCredentialVerifier(store, hasher)
	if err != nil {
		return err
	}

	policy, err := rbac.LoadPolicyFile(cfg.Auth.PolicyFile)
	if err != nil {
		return err
	}

	proxies, err := auth.ParseTrustedProxies(cfg.Auth.TrustedProxies)
	if err != nil {
		return err
	}

	limiterConfig := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Auth.LoginRateLimit,
		WindowDuration:    cfg.Auth.LoginRateWindow,
	}
	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewDistributedRateLimiter(redisClient, limiterConfig, "")
	} else {
		memLimiter := middleware.NewRateLimiter(limiterConfig)
		memLimiter.StartCleanup(ctx)
		limiter = memLimiter
	}

	server, err := api.NewServer(api.Options{
		Store:          store,
		Codec:          codec,
		Resolver:       resolver,
		Verifier:       verifier,
		Hasher:         hasher,
		Policy:         policy,
		LoginLimiter:   limiter,
		TrustedProxies: proxies,
		Logger:         logger,
		Metrics:        metrics,
		Health:         observability.NewHealthChecker(db, redisClient, version),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Tracing:        tp != nil,
	})
	if err != nil {
		return err
	}

	// Periodic gauges
	scheduler := cron.New()
	refresher := &statsRefresher{store: store, db: db, metrics: metrics, logger: logger, timeout: 10 * time.Second}
	if _, err := scheduler.AddFunc(cfg.Observability.StatsSchedule, refresher.Run); err != nil {
		return fmt.Errorf("invalid stats schedule %q: %w", cfg.Observability.StatsSchedule, err)
	}
	refresher.Run()
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	metricsMux := http.NewServeMux()
	observability.RegisterMetricsEndpoint(metricsMux, registry)
	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddr(),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr":    apiServer.Addr,
			"version": version,
			"driver":  cfg.Storage.Driver,
		}).Info("API server listening")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", metricsServer.Addr).Info("metrics server listening")
		return serve(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
	}
	return nil
}
