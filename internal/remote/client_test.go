package remote

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readwellapp/readwell-server/internal/domain"
	"github.com/readwellapp/readwell-server/internal/errors"
	"github.com/readwellapp/readwell-server/internal/remote/devserver"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := devserver.New(log)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return NewClient(ts.URL, 5*time.Second, log)
}

func TestClient_GetDocument_Absent(t *testing.T) {
	c := setupClient(t)

	doc, err := c.GetDocument(context.Background())
	require.NoError(t, err)
	assert.Nil(t, doc, "an empty remote reads as absent, not as an error")
}

func TestClient_UpsertThenGet(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, c.UpsertDocument(ctx, &domain.RemoteDocument{
		DeviceID: "dev-a",
		PushedAt: t0,
		Progress: domain.ProgressMap{
			"ch1": {ItemID: "ch1", LastReadDate: t0, LastPosition: 42, IsRead: true},
		},
	}))

	doc, err := c.GetDocument(ctx)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "dev-a", doc.DeviceID)
	require.Contains(t, doc.Progress, "ch1")
	assert.Equal(t, int64(42), doc.Progress["ch1"].LastPosition)
	assert.True(t, doc.Progress["ch1"].IsRead)
}

func TestClient_UnreachableRemote(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond, log)

	_, err := c.GetDocument(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRemoteUnavailable))

	err = c.UpsertDocument(context.Background(), &domain.RemoteDocument{DeviceID: "dev-a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRemoteUnavailable))
}

func TestClient_SubscribeReceivesPushes(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	var received []*domain.RemoteDocument
	cancel, err := c.Subscribe(ctx, func(doc *domain.RemoteDocument) {
		mu.Lock()
		received = append(received, doc)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()

	// Give the stream a moment to connect before pushing.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, c.UpsertDocument(ctx, &domain.RemoteDocument{
		DeviceID: "dev-b",
		PushedAt: t0,
		Progress: domain.ProgressMap{
			"ch1": {ItemID: "ch1", LastReadDate: t0, LastPosition: 7},
		},
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "dev-b", received[0].DeviceID)
	assert.Equal(t, int64(7), received[0].Progress["ch1"].LastPosition)
}
