package providers

import (
	"github.com/samber/do/v2"

	"github.com/readwellapp/readwell-server/internal/config"
	"github.com/readwellapp/readwell-server/internal/download"
	"github.com/readwellapp/readwell-server/internal/fetch"
	"github.com/readwellapp/readwell-server/internal/logger"
)

// ProvideFetcher provides the HTTP content fetcher.
func ProvideFetcher(i do.Injector) (*fetch.HTTPFetcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return fetch.NewHTTPFetcher(cfg.Download.Timeout, cfg.Download.MaxPayloadBytes, log.Logger), nil
}

// ProvideDownloadManager provides the offline download manager.
func ProvideDownloadManager(i do.Injector) (*download.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	bytes := do.MustInvoke[*ByteStoreHandle](i)
	meta := do.MustInvoke[*MetadataStoreHandle](i)
	monitor := do.MustInvoke[*MonitorHandle](i)
	fetcher := do.MustInvoke[*fetch.HTTPFetcher](i)

	return download.NewManager(
		bytes.ByteStore,
		meta.MetadataStore,
		monitor.Monitor,
		fetcher,
		download.Options{
			BudgetBytes: cfg.Storage.BudgetBytes,
			BatchDelay:  cfg.Download.BatchDelay,
		},
		log.Logger,
	)
}
