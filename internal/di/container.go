// Package di provides dependency injection configuration for the Readwell
// sync engine.
package di

import (
	"github.com/samber/do/v2"

	"github.com/readwellapp/readwell-server/internal/config"
	"github.com/readwellapp/readwell-server/internal/di/providers"
	"github.com/readwellapp/readwell-server/internal/download"
	"github.com/readwellapp/readwell-server/internal/fetch"
	"github.com/readwellapp/readwell-server/internal/logger"
	"github.com/readwellapp/readwell-server/internal/remote"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideByteStore)
	do.Provide(injector, providers.ProvideMetadataStore)

	// Network layer
	do.Provide(injector, providers.ProvideNetworkMonitor)
	do.Provide(injector, providers.ProvideRemoteStore)

	// Content layer
	do.Provide(injector, providers.ProvideFetcher)
	do.Provide(injector, providers.ProvideDownloadManager)

	// Sync layer
	do.Provide(injector, providers.ProvideSyncService)

	return injector
}

// Bootstrap initializes all services for lifecycle management.
// This triggers lazy initialization of everything in dependency order.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.ByteStoreHandle](injector)
	_ = do.MustInvoke[*providers.MetadataStoreHandle](injector)
	_ = do.MustInvoke[*providers.MonitorHandle](injector)
	_ = do.MustInvoke[remote.Store](injector)
	_ = do.MustInvoke[*fetch.HTTPFetcher](injector)
	_ = do.MustInvoke[*download.Manager](injector)
	_ = do.MustInvoke[*providers.SyncServiceHandle](injector)

	return nil
}
