// Package observability bundles the host's operational surface:
// logrus logger construction, Prometheus metrics, OTLP trace
// bootstrap, health endpoints, and graceful shutdown.
package observability
