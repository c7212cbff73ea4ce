package providers

import (
	"github.com/samber/do/v2"

	"github.com/readwellapp/readwell-server/internal/config"
	"github.com/readwellapp/readwell-server/internal/logger"
	"github.com/readwellapp/readwell-server/internal/store"
)

// ByteStoreHandle wraps the byte store with shutdown capability.
type ByteStoreHandle struct {
	*store.ByteStore
}

// Shutdown implements do.Shutdownable.
func (h *ByteStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideByteStore provides the payload blob store.
func ProvideByteStore(i do.Injector) (*ByteStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	bs, err := store.OpenByteStore(cfg.BlobPath(), cfg.Storage.BudgetBytes, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Byte store opened", "path", cfg.BlobPath())
	return &ByteStoreHandle{ByteStore: bs}, nil
}

// MetadataStoreHandle wraps the metadata store with shutdown capability.
type MetadataStoreHandle struct {
	*store.MetadataStore
}

// Shutdown implements do.Shutdownable.
func (h *MetadataStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideMetadataStore provides the structured metadata store.
func ProvideMetadataStore(i do.Injector) (*MetadataStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	ms, err := store.OpenMetadataStore(cfg.MetadataDBPath(), log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Metadata store opened", "path", cfg.MetadataDBPath())
	return &MetadataStoreHandle{MetadataStore: ms}, nil
}
