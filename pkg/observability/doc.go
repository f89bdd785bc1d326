// Package observability provides structured logging, Prometheus metrics,
// health probes and OpenTelemetry tracing for the classroom service.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user", username).Info("login succeeded")
//
// Request-scoped loggers travel on the context. httputil.LoggingMiddleware
// attaches one; handlers and middleware read it back:
//
//	observability.FromContext(r.Context()).WithError(err).Warn("token rejected")
//
// Passwords, password hashes and raw bearer tokens are never logged.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordAuthentication(observability.AuthOutcomeExpired)
//
// A nil *Metrics is valid and records nothing, so components accept it as optional.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	router.HandleFunc("/healthz", checker.Liveness)
//	router.HandleFunc("/readyz", checker.Readiness)
//
// The database is required for readiness; Redis only degrades it.
//
// # Tracing
//
//	tp, err := observability.InitTracing(ctx, cfg, logger)
//	defer observability.ShutdownTracing(ctx, tp, logger)
package observability
