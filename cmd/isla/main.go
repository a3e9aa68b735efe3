// Package main provides the entry point for the Isla library manager.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	"github.com/islabooks/isla/internal/config"
	"github.com/islabooks/isla/internal/di"
	"github.com/islabooks/isla/internal/di/providers"
	"github.com/islabooks/isla/internal/logger"
	"github.com/islabooks/isla/internal/sync"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	cfg := do.MustInvoke[*config.Config](injector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Sync.Enabled {
		startSyncLoop(ctx, injector, cfg.Sync.Interval)
	} else {
		log.Info("Sync disabled by configuration")
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully...")
	cancel()

	// Shutdown all services in reverse order
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// Database and search index use wrapper types and need explicit shutdown
	if storeHandle, err := do.Invoke[*providers.StoreHandle](injector); err == nil {
		log.Info("Closing database...")
		if err := storeHandle.Shutdown(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}

	if searchHandle, err := do.Invoke[*providers.SearchIndexHandle](injector); err == nil {
		log.Info("Closing search index...")
		if err := searchHandle.Shutdown(); err != nil {
			log.Error("Failed to close search index", "error", err)
		}
	}

	log.Info("Goodbye")
}

// startSyncLoop initializes the sync engine and runs a periodic sync until
// the context is cancelled. Status changes are logged as they happen.
func startSyncLoop(ctx context.Context, injector *do.RootScope, interval time.Duration) {
	log := do.MustInvoke[*logger.Logger](injector)
	engine := do.MustInvoke[*sync.Engine](injector)

	if err := engine.Initialize(ctx); err != nil {
		log.Warn("Sync unavailable", "error", err)
		return
	}

	changes, unsubscribe := engine.Subscribe()
	go func() {
		for change := range changes {
			log.Debug("Sync status changed", "kind", change.Kind, "status", change.Status)
		}
	}()

	go func() {
		defer unsubscribe()

		run := func() {
			if err := engine.Run(ctx); err != nil {
				log.Warn("Sync run failed", "error", err)
			}
		}

		run()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()

	log.Info("Sync loop started", "interval", interval)
}
