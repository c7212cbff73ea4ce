package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/readwellapp/readwell-server/internal/config"
	"github.com/readwellapp/readwell-server/internal/domain"
	"github.com/readwellapp/readwell-server/internal/logger"
	"github.com/readwellapp/readwell-server/internal/remote"
	"github.com/readwellapp/readwell-server/internal/service"
)

// ProvideRemoteStore provides the HTTP remote document client.
func ProvideRemoteStore(i do.Injector) (remote.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, log.Logger), nil
}

// SyncServiceHandle wraps the sync service with its subscription lifecycle.
type SyncServiceHandle struct {
	*service.SyncService
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SyncServiceHandle) Shutdown() error {
	h.cancel()
	h.Close()
	return nil
}

// ProvideSyncService provides the progress reconciliation service with the
// live remote subscription running.
func ProvideSyncService(i do.Injector) (*SyncServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	meta := do.MustInvoke[*MetadataStoreHandle](i)
	remoteStore := do.MustInvoke[remote.Store](i)
	monitor := do.MustInvoke[*MonitorHandle](i)

	svc, err := service.NewSyncService(
		meta.MetadataStore,
		remoteStore,
		monitor.Monitor,
		cfg.Sync.DebounceInterval,
		log.Logger,
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	onUpdate := func(progress domain.ProgressMap) {
		log.Info("progress replaced by remote push", "items", len(progress))
	}
	if err := svc.SubscribeRemote(ctx, onUpdate); err != nil {
		cancel()
		return nil, err
	}

	return &SyncServiceHandle{SyncService: svc, cancel: cancel}, nil
}
