package providers

import (
	"strings"

	"github.com/samber/do/v2"

	"github.com/readwellapp/readwell-server/internal/config"
	"github.com/readwellapp/readwell-server/internal/logger"
	"github.com/readwellapp/readwell-server/internal/network"
)

// MonitorHandle wraps the connectivity monitor for lifecycle management.
type MonitorHandle struct {
	*network.Monitor
}

// Shutdown implements do.Shutdownable.
func (h *MonitorHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideNetworkMonitor provides the connectivity monitor, probing the
// remote's health endpoint.
func ProvideNetworkMonitor(i do.Injector) (*MonitorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	healthURL := strings.TrimRight(cfg.Remote.BaseURL, "/") + "/health"
	monitor := network.NewMonitor(healthURL, cfg.Remote.ProbeInterval, cfg.Remote.Timeout, log.Logger)
	monitor.Start()

	log.Info("Connectivity monitor started",
		"health_url", healthURL,
		"probe_interval", cfg.Remote.ProbeInterval)
	return &MonitorHandle{Monitor: monitor}, nil
}
