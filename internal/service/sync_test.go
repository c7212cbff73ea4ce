package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readwellapp/readwell-server/internal/domain"
	"github.com/readwellapp/readwell-server/internal/errors"
	"github.com/readwellapp/readwell-server/internal/network"
	"github.com/readwellapp/readwell-server/internal/store"
)

// fakeRemote is an in-memory remote document store.
type fakeRemote struct {
	mu        sync.Mutex
	doc       *domain.RemoteDocument
	getErr    error
	upsertErr error
	upserts   int
	subs      []func(*domain.RemoteDocument)
}

func (f *fakeRemote) GetDocument(_ context.Context) (*domain.RemoteDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.doc == nil {
		return nil, nil
	}
	c := *f.doc
	c.Progress = f.doc.Progress.Clone()
	return &c, nil
}

func (f *fakeRemote) UpsertDocument(_ context.Context, doc *domain.RemoteDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	c := *doc
	c.Progress = doc.Progress.Clone()
	f.doc = &c
	return nil
}

func (f *fakeRemote) Subscribe(_ context.Context, fn func(*domain.RemoteDocument)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() {}, nil
}

// push simulates another device's write arriving over the live stream.
func (f *fakeRemote) push(doc *domain.RemoteDocument) {
	f.mu.Lock()
	subs := append([]func(*domain.RemoteDocument){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(doc)
	}
}

func (f *fakeRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

func setupMeta(t *testing.T) *store.MetadataStore {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	meta, err := store.OpenMetadataStore(filepath.Join(t.TempDir(), "metadata.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })
	return meta
}

func newService(t *testing.T, meta *store.MetadataStore, rem *fakeRemote, signal network.Signal, debounce time.Duration) *SyncService {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewSyncService(meta, rem, signal, debounce, log)
	require.NoError(t, err)
	return svc
}

func TestRecordActivity_RoundTrip(t *testing.T) {
	meta := setupMeta(t)
	svc := newService(t, meta, &fakeRemote{}, network.NewStaticSignal(true), time.Second)
	ctx := context.Background()

	require.NoError(t, svc.RecordActivity(ctx, Activity{ItemID: "ch1", Position: 120}))
	require.NoError(t, svc.RecordActivity(ctx, Activity{ItemID: "ch1", Position: 80, MarkRead: true, CountRead: true}))

	rec, ok := svc.Get("ch1")
	require.True(t, ok)
	assert.Equal(t, int64(120), rec.LastPosition, "an earlier position must not regress the furthest point")
	assert.True(t, rec.IsRead)
	assert.Equal(t, 1, rec.ReadCount)

	// Progress survives a restart.
	svc2 := newService(t, meta, &fakeRemote{}, network.NewStaticSignal(true), time.Second)
	rec2, ok := svc2.Get("ch1")
	require.True(t, ok)
	assert.Equal(t, rec, rec2)
}

func TestRecordActivity_Validation(t *testing.T) {
	svc := newService(t, setupMeta(t), &fakeRemote{}, network.NewStaticSignal(true), time.Second)

	err := svc.RecordActivity(context.Background(), Activity{Position: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Contains(t, err.Error(), "item_id")

	err = svc.RecordActivity(context.Background(), Activity{ItemID: "ch1", Position: -1})
	require.Error(t, err)
}

func TestDeviceID_Stable(t *testing.T) {
	meta := setupMeta(t)
	svc1 := newService(t, meta, &fakeRemote{}, network.NewStaticSignal(true), time.Second)
	svc2 := newService(t, meta, &fakeRemote{}, network.NewStaticSignal(true), time.Second)

	require.NotEmpty(t, svc1.DeviceID())
	assert.Equal(t, svc1.DeviceID(), svc2.DeviceID())
}

func TestPushToRemote(t *testing.T) {
	rem := &fakeRemote{}
	svc := newService(t, setupMeta(t), rem, network.NewStaticSignal(true), time.Second)
	ctx := context.Background()

	require.NoError(t, svc.RecordActivity(ctx, Activity{ItemID: "ch1", Position: 42}))
	require.NoError(t, svc.PushToRemote(ctx))

	rem.mu.Lock()
	defer rem.mu.Unlock()
	require.NotNil(t, rem.doc)
	assert.Equal(t, svc.DeviceID(), rem.doc.DeviceID)
	assert.Equal(t, int64(42), rem.doc.Progress["ch1"].LastPosition)
}

func TestPushToRemote_Offline(t *testing.T) {
	svc := newService(t, setupMeta(t), &fakeRemote{}, network.NewStaticSignal(false), time.Second)

	err := svc.PushToRemote(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoConnectivity))
	assert.Contains(t, err.Error(), "connection")
}

func TestPullAndMerge(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := &fakeRemote{doc: &domain.RemoteDocument{
		DeviceID: "other-device",
		PushedAt: t0,
		Progress: domain.ProgressMap{
			"ch1": {ItemID: "ch1", LastReadDate: t0.Add(time.Hour), LastPosition: 30, IsRead: true, ReadCount: 1},
		},
	}}

	meta := setupMeta(t)
	ctx := context.Background()

	// Local knows a further position under an older timestamp.
	require.NoError(t, meta.WriteJSON(store.KeyProgressMap, domain.ProgressMap{
		"ch1": {ItemID: "ch1", LastReadDate: t0, LastPosition: 50, ReadCount: 1},
	}))
	svc := newService(t, meta, rem, network.NewStaticSignal(true), time.Second)

	require.NoError(t, svc.PullAndMerge(ctx))

	rec, ok := svc.Get("ch1")
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour), rec.LastReadDate)
	assert.Equal(t, int64(50), rec.LastPosition)
	assert.True(t, rec.IsRead)
	assert.Equal(t, 1, rec.ReadCount)

	// The merged map is pushed back so the remote converges too.
	assert.Equal(t, 1, rem.upsertCount())
	rem.mu.Lock()
	assert.Equal(t, int64(50), rem.doc.Progress["ch1"].LastPosition)
	rem.mu.Unlock()
}

func TestPullAndMerge_AbsentRemotePushesLocal(t *testing.T) {
	rem := &fakeRemote{}
	svc := newService(t, setupMeta(t), rem, network.NewStaticSignal(true), time.Second)
	ctx := context.Background()

	require.NoError(t, svc.RecordActivity(ctx, Activity{ItemID: "ch1", Position: 10}))
	require.NoError(t, svc.PullAndMerge(ctx))

	assert.Equal(t, 1, rem.upsertCount())
}

func TestPullAndMerge_MalformedRemoteTreatedAsAbsent(t *testing.T) {
	rem := &fakeRemote{getErr: errors.MalformedRemoteData("unparseable document")}
	svc := newService(t, setupMeta(t), rem, network.NewStaticSignal(true), time.Second)
	ctx := context.Background()

	require.NoError(t, svc.RecordActivity(ctx, Activity{ItemID: "ch1", Position: 10}))
	require.NoError(t, svc.PullAndMerge(ctx))

	assert.Equal(t, 1, rem.upsertCount(), "a malformed remote document must not block the local push")
}

func TestPullAndMerge_RemoteUnavailable(t *testing.T) {
	rem := &fakeRemote{getErr: errors.RemoteUnavailable("boom")}
	svc := newService(t, setupMeta(t), rem, network.NewStaticSignal(true), time.Second)

	err := svc.PullAndMerge(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRemoteUnavailable))
}

func TestPushThenPull_FreshReplicaAdoptsRemote(t *testing.T) {
	rem := &fakeRemote{}
	ctx := context.Background()

	deviceA := newService(t, setupMeta(t), rem, network.NewStaticSignal(true), time.Second)
	require.NoError(t, deviceA.RecordActivity(ctx, Activity{ItemID: "ch1", Position: 120, MarkRead: true, CountRead: true}))
	require.NoError(t, deviceA.RecordActivity(ctx, Activity{ItemID: "ch2", Position: 8}))
	require.NoError(t, deviceA.PushToRemote(ctx))

	// A replica with no local history pulls and ends up with device A's
	// map, record for record.
	deviceB := newService(t, setupMeta(t), rem, network.NewStaticSignal(true), time.Second)
	require.NoError(t, deviceB.PullAndMerge(ctx))

	assert.Equal(t, deviceA.GetAll(), deviceB.GetAll())
}

func TestSyncOnActivity_Debounced(t *testing.T) {
	rem := &fakeRemote{}
	svc := newService(t, setupMeta(t), rem, network.NewStaticSignal(true), time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc.SyncOnActivity(ctx)
	}
	assert.Equal(t, 1, rem.upsertCount(), "a burst of activity must produce at most one push per window")
}

func TestSyncOnActivity_SwallowsErrors(t *testing.T) {
	rem := &fakeRemote{upsertErr: errors.RemoteUnavailable("boom")}
	svc := newService(t, setupMeta(t), rem, network.NewStaticSignal(true), time.Minute)

	// Must not panic or surface the failure.
	svc.SyncOnActivity(context.Background())
}

func TestSubscribeRemote_OverwritesLocal(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := &fakeRemote{}
	meta := setupMeta(t)
	svc := newService(t, meta, rem, network.NewStaticSignal(true), time.Second)
	ctx := context.Background()

	require.NoError(t, svc.RecordActivity(ctx, Activity{ItemID: "ch1", Position: 99}))

	var notified []domain.ProgressMap
	require.NoError(t, svc.SubscribeRemote(ctx, func(p domain.ProgressMap) {
		notified = append(notified, p)
	}))
	defer svc.Close()

	// A live push replaces the local map wholesale, even where the incoming
	// record is behind: the remote document is already the merged truth.
	rem.push(&domain.RemoteDocument{
		DeviceID: "other-device",
		PushedAt: t0,
		Progress: domain.ProgressMap{
			"ch1": {ItemID: "ch1", LastReadDate: t0, LastPosition: 10},
		},
	})

	rec, ok := svc.Get("ch1")
	require.True(t, ok)
	assert.Equal(t, int64(10), rec.LastPosition)

	// The subscriber hears about the replacement and sees the new map.
	require.Len(t, notified, 1)
	assert.Equal(t, int64(10), notified[0]["ch1"].LastPosition)

	// And it is persisted.
	svc2 := newService(t, meta, &fakeRemote{}, network.NewStaticSignal(true), time.Second)
	rec2, ok := svc2.Get("ch1")
	require.True(t, ok)
	assert.Equal(t, int64(10), rec2.LastPosition)
}

func TestSubscribeRemote_IgnoresSelfEcho(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rem := &fakeRemote{}
	svc := newService(t, setupMeta(t), rem, network.NewStaticSignal(true), time.Second)
	ctx := context.Background()

	require.NoError(t, svc.RecordActivity(ctx, Activity{ItemID: "ch1", Position: 99}))

	onUpdateCalls := 0
	require.NoError(t, svc.SubscribeRemote(ctx, func(domain.ProgressMap) {
		onUpdateCalls++
	}))
	defer svc.Close()

	rem.push(&domain.RemoteDocument{
		DeviceID: svc.DeviceID(),
		PushedAt: t0,
		Progress: domain.ProgressMap{
			"ch1": {ItemID: "ch1", LastReadDate: t0, LastPosition: 1},
		},
	})

	rec, ok := svc.Get("ch1")
	require.True(t, ok)
	assert.Equal(t, int64(99), rec.LastPosition, "a device's own echoed push must not rewind its local state")
	assert.Zero(t, onUpdateCalls, "a self-echo must not notify subscribers")
}
