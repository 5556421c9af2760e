package observability

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownFunc releases one resource during graceful shutdown.
type ShutdownFunc func(context.Context) error

// GracefulShutdown blocks until SIGINT or SIGTERM, then drains the HTTP
// server and runs every shutdown function in order, all under one
// deadline. Errors are logged, not returned early, so every resource
// gets its chance to close.
func GracefulShutdown(log *logrus.Logger, server *http.Server, timeout time.Duration, shutdownFuncs ...ShutdownFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infof("Received signal %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server shutdown failed: %v", err)
	}

	for _, fn := range shutdownFuncs {
		if err := fn(ctx); err != nil {
			log.Errorf("Shutdown step failed: %v", err)
		}
	}
	log.Info("Shutdown complete")
}
