// Package main provides the entry point for the Readwell sync engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/readwellapp/readwell-server/internal/di"
	"github.com/readwellapp/readwell-server/internal/di/providers"
	"github.com/readwellapp/readwell-server/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap sync engine: %v\n", err)
		os.Exit(1)
	}

	// Get logger for shutdown messages
	log := do.MustInvoke[*logger.Logger](injector)

	// Reconcile with the remote once at startup; a failure here just means
	// we start offline and catch up on the next activity sync.
	sync := do.MustInvoke[*providers.SyncServiceHandle](injector)
	if err := sync.PullAndMerge(context.Background()); err != nil {
		log.Warn("Initial reconciliation skipped", "error", err)
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully...")

	// Shutdown all services in reverse order
	// (every handle implements do.Shutdownable, so the container closes them all)
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Goodnight, keep your page marked...")
}
