// Package download implements the offline content download manager: it turns
// a network-hosted content+audio pair into durable offline assets under a
// storage budget, tracks in-flight jobs, and fans out status snapshots.
package download

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/readwellapp/readwell-server/internal/domain"
	"github.com/readwellapp/readwell-server/internal/errors"
	"github.com/readwellapp/readwell-server/internal/fetch"
	"github.com/readwellapp/readwell-server/internal/id"
	"github.com/readwellapp/readwell-server/internal/network"
	"github.com/readwellapp/readwell-server/internal/store"
	"github.com/readwellapp/readwell-server/internal/validation"
)

var validate = validation.New()

// Fetcher retrieves content payloads. FetchAudio returns (nil, nil) when no
// narration exists at the hinted location.
type Fetcher interface {
	FetchText(ctx context.Context, desc domain.ContentDescriptor) ([]byte, error)
	FetchAudio(ctx context.Context, url string) (*fetch.AudioPayload, error)
}

// Options configures the manager.
type Options struct {
	// BudgetBytes is the advisory storage ceiling for downloads.
	BudgetBytes int64
	// BatchDelay is the yield between items in DownloadMany, so a burst of
	// requests does not saturate the connection.
	BatchDelay time.Duration
}

// pendingDownload de-duplicates concurrent requests for the same item. A
// second Download call for an in-flight item waits on done and shares the
// settled result instead of starting a second fetch.
type pendingDownload struct {
	done   chan struct{}
	result domain.DownloadResult
}

// Manager orchestrates downloads. Constructed once at application start and
// shared; the in-flight job table and the offline manifest are owned
// exclusively by this type.
type Manager struct {
	bytes   *store.ByteStore
	meta    *store.MetadataStore
	signal  network.Signal
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger

	mu          sync.Mutex
	manifest    domain.Manifest
	jobs        map[string]*domain.DownloadJob
	pending     map[string]*pendingDownload
	subscribers map[string]func(domain.ManagerStatus)
}

// NewManager creates the download manager and loads the persisted manifest.
// Manifest entries whose payload refs no longer resolve (e.g. after a crash
// mid-delete) are pruned: only a fully consistent entry is trusted.
func NewManager(
	bytes *store.ByteStore,
	meta *store.MetadataStore,
	signal network.Signal,
	fetcher Fetcher,
	opts Options,
	logger *slog.Logger,
) (*Manager, error) {
	m := &Manager{
		bytes:       bytes,
		meta:        meta,
		signal:      signal,
		fetcher:     fetcher,
		opts:        opts,
		logger:      logger,
		manifest:    make(domain.Manifest),
		jobs:        make(map[string]*domain.DownloadJob),
		pending:     make(map[string]*pendingDownload),
		subscribers: make(map[string]func(domain.ManagerStatus)),
	}

	manifest := make(domain.Manifest)
	if _, err := meta.ReadJSON(store.KeyOfflineManifest, &manifest); err != nil {
		return nil, err
	}

	pruned := false
	ctx := context.Background()
	for itemID, item := range manifest {
		if m.refsResolve(ctx, item) {
			continue
		}
		logger.Warn("pruning manifest entry with dangling payload refs", "item_id", itemID)
		delete(manifest, itemID)
		pruned = true
	}
	m.manifest = manifest

	if pruned {
		if err := meta.WriteJSON(store.KeyOfflineManifest, manifest); err != nil {
			return nil, err
		}
	}

	logger.Info("download manager ready", "offline_items", len(manifest))
	return m, nil
}

// IsAvailableOffline reports whether a manifest entry exists and its payload
// refs resolve in the byte store.
func (m *Manager) IsAvailableOffline(ctx context.Context, itemID string) bool {
	m.mu.Lock()
	item, ok := m.manifest[itemID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return m.refsResolve(ctx, item)
}

// GetOfflineItem returns the manifest entry for an item, if present.
func (m *Manager) GetOfflineItem(itemID string) (*domain.OfflineItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.manifest[itemID]
	if !ok {
		return nil, false
	}
	c := *item
	return &c, true
}

// GetText reads the cached text payload of a downloaded item.
func (m *Manager) GetText(ctx context.Context, itemID string) ([]byte, error) {
	m.mu.Lock()
	item, ok := m.manifest[itemID]
	m.mu.Unlock()
	if !ok {
		return nil, errors.NotFoundf("item %s is not available offline", itemID)
	}
	return m.bytes.Get(ctx, item.TextRef)
}

// GetAudio reads the cached narration payload of a downloaded item.
// Returns nil data for text-only items.
func (m *Manager) GetAudio(ctx context.Context, itemID string) ([]byte, error) {
	m.mu.Lock()
	item, ok := m.manifest[itemID]
	m.mu.Unlock()
	if !ok {
		return nil, errors.NotFoundf("item %s is not available offline", itemID)
	}
	if !item.HasAudio() {
		return nil, nil
	}
	return m.bytes.Get(ctx, item.AudioRef)
}

// Download fetches an item's text and optional audio and persists them as an
// offline item. Idempotent at the manifest level: an already-downloaded item
// returns completed immediately without re-fetching. Concurrent calls for
// the same item share a single in-flight fetch.
//
// Errors are returned as a result value, never as an error: downloads are
// user-initiated background actions the UI must display gracefully.
func (m *Manager) Download(ctx context.Context, desc domain.ContentDescriptor) domain.DownloadResult {
	if err := validate.Validate(desc); err != nil {
		return domain.DownloadResult{
			ItemID:       desc.ItemID,
			Status:       domain.JobError,
			ErrorMessage: err.Error(),
		}
	}

	m.mu.Lock()
	if _, ok := m.manifest[desc.ItemID]; ok {
		m.mu.Unlock()
		return domain.DownloadResult{ItemID: desc.ItemID, Status: domain.JobCompleted}
	}
	if p, ok := m.pending[desc.ItemID]; ok {
		m.mu.Unlock()
		<-p.done
		return p.result
	}

	p := &pendingDownload{done: make(chan struct{})}
	m.pending[desc.ItemID] = p
	m.jobs[desc.ItemID] = &domain.DownloadJob{
		ItemID: desc.ItemID,
		Status: domain.JobDownloading,
	}
	m.mu.Unlock()
	m.notify()

	result := m.runDownload(ctx, desc)

	// Settle: the pending entry is cleared only here, on settlement, and the
	// terminal job leaves the in-flight table.
	m.mu.Lock()
	p.result = result
	delete(m.pending, desc.ItemID)
	delete(m.jobs, desc.ItemID)
	m.mu.Unlock()
	close(p.done)
	m.notify()

	return result
}

// DownloadMany processes items strictly in the order given, one at a time,
// with a small yield between items. Each item's result is independent: one
// failure does not abort the batch.
func (m *Manager) DownloadMany(ctx context.Context, descs []domain.ContentDescriptor) []domain.DownloadResult {
	results := make([]domain.DownloadResult, 0, len(descs))
	for i, desc := range descs {
		if i > 0 && m.opts.BatchDelay > 0 {
			time.Sleep(m.opts.BatchDelay)
		}
		results = append(results, m.Download(ctx, desc))
	}
	return results
}

// runDownload executes the fetch pipeline for one item. Payloads are written
// before the manifest entry so a failure at any step leaves nothing partial
// in the manifest.
func (m *Manager) runDownload(ctx context.Context, desc domain.ContentDescriptor) domain.DownloadResult {
	fail := func(err error) domain.DownloadResult {
		m.logger.Warn("download failed", "item_id", desc.ItemID, "error", err)
		return domain.DownloadResult{
			ItemID:       desc.ItemID,
			Status:       domain.JobError,
			ErrorMessage: err.Error(),
		}
	}

	if !m.signal.IsOnline() {
		return fail(errors.NoConnectivity("no network connection available"))
	}

	// Advisory budget check. The byte store can still refuse the write;
	// that surfaces as a storage error below.
	if used := m.usedBytes(); used >= m.opts.BudgetBytes {
		return fail(errors.QuotaExceededf("storage budget exhausted: %d of %d bytes used", used, m.opts.BudgetBytes))
	}

	text, err := m.fetcher.FetchText(ctx, desc)
	if err != nil {
		return fail(err)
	}
	m.setJobProgress(desc.ItemID, 10)

	audio, err := m.fetcher.FetchAudio(ctx, desc.AudioURLHint)
	if err != nil {
		return fail(err)
	}
	m.setJobProgress(desc.ItemID, 40)

	textRef := id.MustGenerate("pay")
	if err := m.bytes.Put(ctx, textRef, text); err != nil {
		return fail(err)
	}

	var audioRef string
	var audioDuration float64
	if audio != nil {
		audioRef = id.MustGenerate("pay")
		if err := m.bytes.Put(ctx, audioRef, audio.Data); err != nil {
			// Don't leave the text payload orphaned.
			_ = m.bytes.Delete(ctx, textRef)
			return fail(err)
		}
		audioDuration = audio.DurationSeconds
	}
	m.setJobProgress(desc.ItemID, 70)

	item := &domain.OfflineItem{
		ItemID:               desc.ItemID,
		Title:                desc.Title,
		TextRef:              textRef,
		AudioRef:             audioRef,
		AudioDurationSeconds: audioDuration,
		DownloadedAt:         time.Now(),
		SizeBytes:            int64(len(text)) + domain.EstimateAudioSize(audioDuration),
	}

	m.mu.Lock()
	m.manifest[item.ItemID] = item
	err = m.meta.WriteJSON(store.KeyOfflineManifest, m.manifest)
	if err != nil {
		delete(m.manifest, item.ItemID)
	}
	m.mu.Unlock()
	if err != nil {
		_ = m.bytes.Delete(ctx, textRef)
		if audioRef != "" {
			_ = m.bytes.Delete(ctx, audioRef)
		}
		return fail(errors.Wrap(err, errors.CodeStorageWriteFailed, "persist manifest"))
	}
	m.setJobProgress(desc.ItemID, 100)

	m.logger.Info("download complete",
		"item_id", item.ItemID,
		"size_bytes", item.SizeBytes,
		"has_audio", item.HasAudio(),
	)
	return domain.DownloadResult{ItemID: desc.ItemID, Status: domain.JobCompleted}
}

// Remove deletes an item's payloads, then its manifest entry. No-op if the
// item is not downloaded.
func (m *Manager) Remove(ctx context.Context, itemID string) error {
	m.mu.Lock()
	item, ok := m.manifest[itemID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	// Payload refs go first: a crash here leaves a dangling manifest entry,
	// which the startup sweep prunes. The reverse order would leak blobs.
	if err := m.bytes.Delete(ctx, item.TextRef); err != nil {
		return err
	}
	if item.HasAudio() {
		if err := m.bytes.Delete(ctx, item.AudioRef); err != nil {
			return err
		}
	}

	m.mu.Lock()
	delete(m.manifest, itemID)
	err := m.meta.WriteJSON(store.KeyOfflineManifest, m.manifest)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.notify()
	m.logger.Info("offline item removed", "item_id", itemID)
	return nil
}

// ClearAll deletes every cached payload, the entire manifest, and all
// in-flight job state.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.bytes.DeleteAll(); err != nil {
		return err
	}

	m.mu.Lock()
	m.manifest = make(domain.Manifest)
	m.jobs = make(map[string]*domain.DownloadJob)
	err := m.meta.DeleteKey(store.KeyOfflineManifest)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.notify()
	m.logger.Info("offline storage cleared")
	return nil
}

// Status returns a snapshot of the manager state. Synchronous; never blocks
// on I/O.
func (m *Manager) Status() domain.ManagerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() domain.ManagerStatus {
	used := m.manifest.TotalSize()
	available := m.opts.BudgetBytes - used
	if available < 0 {
		available = 0
	}

	ids := make([]string, 0, len(m.manifest))
	for itemID := range m.manifest {
		ids = append(ids, itemID)
	}
	slices.Sort(ids)

	jobs := make([]domain.DownloadJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}

	online := m.signal.IsOnline()
	return domain.ManagerStatus{
		IsOnline:        online,
		CanDownloadMore: online && used < m.opts.BudgetBytes,
		BytesUsed:       used,
		BytesAvailable:  available,
		DownloadedIDs:   ids,
		InFlight:        jobs,
	}
}

// Subscribe registers a listener that receives a fresh status snapshot on
// every manifest or job-table mutation. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(domain.ManagerStatus)) func() {
	key := id.MustGenerate("sub")

	m.mu.Lock()
	m.subscribers[key] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, key)
		m.mu.Unlock()
	}
}

// refsResolve reports whether every payload ref of a manifest entry is
// present in the byte store.
func (m *Manager) refsResolve(ctx context.Context, item *domain.OfflineItem) bool {
	ok, err := m.bytes.Has(ctx, item.TextRef)
	if err != nil || !ok {
		return false
	}
	if !item.HasAudio() {
		return true
	}
	ok, err = m.bytes.Has(ctx, item.AudioRef)
	return err == nil && ok
}

// usedBytes reports the manifest-accounted storage usage.
func (m *Manager) usedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manifest.TotalSize()
}

// setJobProgress updates an in-flight job milestone and notifies subscribers.
func (m *Manager) setJobProgress(itemID string, percent int) {
	m.mu.Lock()
	if job, ok := m.jobs[itemID]; ok {
		job.ProgressPercent = percent
	}
	m.mu.Unlock()
	m.notify()
}

// notify delivers a status snapshot to every subscriber. Snapshots, not live
// references: listeners must never observe shared mutation.
func (m *Manager) notify() {
	m.mu.Lock()
	status := m.statusLocked()
	fns := make([]func(domain.ManagerStatus), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}
