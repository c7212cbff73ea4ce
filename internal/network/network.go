// Package network provides the connectivity signal consumed by the download
// manager and sync service.
package network

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/readwellapp/readwell-server/internal/id"
)

// Signal reports boolean reachability with transition events.
type Signal interface {
	IsOnline() bool
	// OnChange registers a callback invoked on every online/offline
	// transition. The returned func removes the registration.
	OnChange(fn func(online bool)) (unsubscribe func())
}

// Monitor probes a health endpoint periodically and fans out transitions.
type Monitor struct {
	healthURL string
	interval  time.Duration
	client    *http.Client
	logger    *slog.Logger

	mu        sync.RWMutex
	online    bool
	listeners map[string]func(online bool)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a connectivity monitor against the given health URL.
// The monitor starts offline until the first successful probe.
func NewMonitor(healthURL string, interval time.Duration, timeout time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		healthURL: healthURL,
		interval:  interval,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		listeners: make(map[string]func(online bool)),
	}
}

// Start probes immediately, then on every interval tick until Stop.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		m.probe(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.probe(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts probing. Registered listeners are kept.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// IsOnline returns the last observed reachability.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnChange implements Signal.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	key := id.MustGenerate("net")

	m.mu.Lock()
	m.listeners[key] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, key)
		m.mu.Unlock()
	}
}

// SetOnline forces the reachability state. Exposed for callers that learn
// about connectivity out of band (e.g. a failed remote call).
func (m *Monitor) SetOnline(online bool) {
	m.transition(online)
}

func (m *Monitor) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.healthURL, nil)
	if err != nil {
		m.transition(false)
		return
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.transition(false)
		return
	}
	resp.Body.Close()

	m.transition(resp.StatusCode < http.StatusInternalServerError)
}

// transition updates state and notifies listeners on actual change.
func (m *Monitor) transition(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("connectivity changed", "online", online)
	}
	for _, fn := range fns {
		fn(online)
	}
}

// StaticSignal is a manually driven Signal for tests and embedded use.
type StaticSignal struct {
	mu        sync.RWMutex
	online    bool
	listeners map[string]func(online bool)
}

// NewStaticSignal creates a signal fixed to the given initial state.
func NewStaticSignal(online bool) *StaticSignal {
	return &StaticSignal{
		online:    online,
		listeners: make(map[string]func(online bool)),
	}
}

// IsOnline implements Signal.
func (s *StaticSignal) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// OnChange implements Signal.
func (s *StaticSignal) OnChange(fn func(online bool)) func() {
	key := id.MustGenerate("net")

	s.mu.Lock()
	s.listeners[key] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, key)
		s.mu.Unlock()
	}
}

// SetOnline flips the state and notifies listeners on change.
func (s *StaticSignal) SetOnline(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	fns := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}
