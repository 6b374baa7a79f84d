// Package observability provides logrus logging, Prometheus metrics,
// OpenTelemetry tracing and health checks for the authorization service.
//
// # Logging
//
//	log := observability.NewLogger("info", os.Stdout)
//	ctx = observability.WithLogger(ctx, log)
//	observability.FromContext(ctx).Info("Snapshot loaded")
//
// FromContext adds request_id and user_id fields when present in ctx.
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.DecisionsTotal.WithLabelValues("check", "allowed").Inc()
//
// All metric names are prefixed with mesauthz_.
//
// # Tracing
//
// InitOTel installs global tracer and meter providers exporting over OTLP
// gRPC. When disabled it returns nil providers and the global no-op
// implementations stay in place.
package observability
