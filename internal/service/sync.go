// Package service implements progress reconciliation: it keeps the
// per-item reading progress map durable locally, merges it with the remote
// document store, and mirrors live pushes from other devices.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/readwellapp/readwell-server/internal/domain"
	"github.com/readwellapp/readwell-server/internal/errors"
	"github.com/readwellapp/readwell-server/internal/network"
	"github.com/readwellapp/readwell-server/internal/remote"
	"github.com/readwellapp/readwell-server/internal/store"
	"github.com/readwellapp/readwell-server/internal/validation"
)

var validate = validation.New()

// Activity is one reading event: the user read item ItemID up to Position.
type Activity struct {
	ItemID   string `json:"item_id" validate:"required"`
	Position int64  `json:"position" validate:"gte=0"`
	// MarkRead marks the item finished. Finishing is a fact that merging
	// never reverses.
	MarkRead bool `json:"mark_read"`
	// CountRead increments the completed-read counter. Set together with
	// MarkRead when a read-through ends.
	CountRead bool `json:"count_read"`
}

// SyncService reconciles local reading progress with the remote document.
// All exported methods are safe for concurrent use.
type SyncService struct {
	meta     *store.MetadataStore
	remote   remote.Store
	signal   network.Signal
	logger   *slog.Logger
	deviceID string

	mu       sync.Mutex
	progress domain.ProgressMap

	// limiter debounces SyncOnActivity so a burst of reading events
	// produces at most one remote push per debounce window.
	limiter *rate.Limiter

	unsubscribe func()
}

// NewSyncService loads the persisted progress map and the device identity.
// A missing or unreadable progress map starts empty; the next merge
// repopulates it from the remote.
func NewSyncService(
	meta *store.MetadataStore,
	remoteStore remote.Store,
	signal network.Signal,
	debounce time.Duration,
	logger *slog.Logger,
) (*SyncService, error) {
	progress := make(domain.ProgressMap)
	if _, err := meta.ReadJSON(store.KeyProgressMap, &progress); err != nil {
		return nil, err
	}

	deviceID, err := loadDeviceID(meta)
	if err != nil {
		return nil, err
	}

	logger.Info("sync service ready", "device_id", deviceID, "items", len(progress))
	return &SyncService{
		meta:     meta,
		remote:   remoteStore,
		signal:   signal,
		logger:   logger,
		deviceID: deviceID,
		progress: progress,
		limiter:  rate.NewLimiter(rate.Every(debounce), 1),
	}, nil
}

// loadDeviceID reads the persisted device identity, minting one on first run.
func loadDeviceID(meta *store.MetadataStore) (string, error) {
	var deviceID string
	found, err := meta.ReadJSON(store.KeyDeviceID, &deviceID)
	if err != nil {
		return "", err
	}
	if found && deviceID != "" {
		return deviceID, nil
	}

	deviceID = uuid.NewString()
	if err := meta.WriteJSON(store.KeyDeviceID, deviceID); err != nil {
		return "", err
	}
	return deviceID, nil
}

// DeviceID returns this replica's stable identity.
func (s *SyncService) DeviceID() string {
	return s.deviceID
}

// Get returns a copy of one item's progress record.
func (s *SyncService) Get(itemID string) (*domain.ProgressRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.progress[itemID]
	if !ok {
		return nil, false
	}
	c := *rec
	return &c, true
}

// GetAll returns a copy of the full progress map.
func (s *SyncService) GetAll() domain.ProgressMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.Clone()
}

// RecordActivity applies a reading event to the local map and persists it.
// Remote sync is separate; callers follow up with SyncOnActivity.
func (s *SyncService) RecordActivity(ctx context.Context, act Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate.Validate(act); err != nil {
		return err
	}

	s.mu.Lock()
	rec, ok := s.progress[act.ItemID]
	if !ok {
		rec = &domain.ProgressRecord{ItemID: act.ItemID}
		s.progress[act.ItemID] = rec
	}
	rec.Touch(act.Position, act.MarkRead, act.CountRead)
	err := s.meta.WriteJSON(store.KeyProgressMap, s.progress)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("activity recorded",
		"item_id", act.ItemID,
		"position", act.Position,
		"mark_read", act.MarkRead)
	return nil
}

// PushToRemote writes the local progress map to the remote document store.
func (s *SyncService) PushToRemote(ctx context.Context) error {
	if !s.signal.IsOnline() {
		return errors.NoConnectivity("no network connection available")
	}

	s.mu.Lock()
	doc := &domain.RemoteDocument{
		DeviceID: s.deviceID,
		PushedAt: time.Now(),
		Progress: s.progress.Clone(),
	}
	s.mu.Unlock()

	if err := s.remote.UpsertDocument(ctx, doc); err != nil {
		return err
	}
	s.logger.Debug("progress pushed", "items", len(doc.Progress))
	return nil
}

// PullAndMerge fetches the remote document, merges it into the local map
// using the reconciliation policy, persists the result, and pushes the
// merged map back so the remote converges too.
//
// An absent remote document, and a malformed one, both mean "remote has
// nothing usable": the local map is pushed as the initial document.
func (s *SyncService) PullAndMerge(ctx context.Context) error {
	if !s.signal.IsOnline() {
		return errors.NoConnectivity("no network connection available")
	}

	doc, err := s.remote.GetDocument(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrMalformedRemoteData) {
			s.logger.Warn("remote document is malformed, treating as absent", "error", err)
			doc = nil
		} else {
			return err
		}
	}

	if doc == nil {
		return s.PushToRemote(ctx)
	}

	s.mu.Lock()
	s.progress = domain.MergeMaps(s.progress, doc.Progress)
	err = s.meta.WriteJSON(store.KeyProgressMap, s.progress)
	items := len(s.progress)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Info("progress merged", "items", items)
	return s.PushToRemote(ctx)
}

// SyncOnActivity pushes to the remote, debounced: at most one push per
// debounce window, extra calls within the window are dropped. Failures are
// logged, never returned; background sync must not surface errors into the
// reading flow.
func (s *SyncService) SyncOnActivity(ctx context.Context) {
	if !s.limiter.Allow() {
		return
	}
	if err := s.PushToRemote(ctx); err != nil {
		s.logger.Warn("background sync failed", "error", err)
	}
}

// SubscribeRemote mirrors live pushes from other devices into the local map.
// A received document replaces the local map wholesale: the remote document
// is already the merged truth, so last writer from the remote wins. This
// device's own echoed pushes are ignored.
//
// After each overwrite, onUpdate is invoked with a copy of the new map so
// collaborators can refresh what they display. A nil onUpdate is allowed.
func (s *SyncService) SubscribeRemote(ctx context.Context, onUpdate func(domain.ProgressMap)) error {
	unsubscribe, err := s.remote.Subscribe(ctx, func(doc *domain.RemoteDocument) {
		if doc.DeviceID == s.deviceID {
			return
		}

		s.mu.Lock()
		s.progress = doc.Progress.Clone()
		err := s.meta.WriteJSON(store.KeyProgressMap, s.progress)
		updated := s.progress.Clone()
		s.mu.Unlock()
		if err != nil {
			s.logger.Error("persist subscribed progress", "error", err)
			return
		}
		s.logger.Info("progress updated from remote",
			"device_id", doc.DeviceID,
			"items", len(doc.Progress))
		if onUpdate != nil {
			onUpdate(updated)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return nil
}

// Close stops the live subscription if one is active.
func (s *SyncService) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
