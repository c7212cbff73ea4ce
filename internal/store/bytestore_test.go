package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupByteStore(t *testing.T) *ByteStore {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bs, err := OpenByteStore(filepath.Join(t.TempDir(), "blobs"), 1<<20, log)
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })
	return bs
}

func TestByteStore_PutGet(t *testing.T) {
	bs := setupByteStore(t)
	ctx := context.Background()

	payload := []byte("chapter one, in full")
	require.NoError(t, bs.Put(ctx, "pay-1", payload))

	got, err := bs.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	has, err := bs.Has(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestByteStore_GetMissing(t *testing.T) {
	bs := setupByteStore(t)

	_, err := bs.Get(context.Background(), "pay-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPayloadNotFound)

	has, err := bs.Has(context.Background(), "pay-missing")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestByteStore_Delete(t *testing.T) {
	bs := setupByteStore(t)
	ctx := context.Background()

	require.NoError(t, bs.Put(ctx, "pay-1", []byte("x")))
	require.NoError(t, bs.Delete(ctx, "pay-1"))

	has, err := bs.Has(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, has)

	// Deleting an absent ref is not an error.
	require.NoError(t, bs.Delete(ctx, "pay-1"))
}

func TestByteStore_DeleteAll(t *testing.T) {
	bs := setupByteStore(t)
	ctx := context.Background()

	require.NoError(t, bs.Put(ctx, "pay-1", []byte("a")))
	require.NoError(t, bs.Put(ctx, "pay-2", []byte("b")))
	require.NoError(t, bs.DeleteAll())

	for _, ref := range []string{"pay-1", "pay-2"} {
		has, err := bs.Has(ctx, ref)
		require.NoError(t, err)
		assert.False(t, has)
	}
}

func TestByteStore_Overwrite(t *testing.T) {
	bs := setupByteStore(t)
	ctx := context.Background()

	require.NoError(t, bs.Put(ctx, "pay-1", []byte("old")))
	require.NoError(t, bs.Put(ctx, "pay-1", []byte("new")))

	got, err := bs.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestByteStore_EstimateCapacity(t *testing.T) {
	bs := setupByteStore(t)

	cap, err := bs.EstimateCapacity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), cap.TotalBytes)
	assert.GreaterOrEqual(t, cap.UsedBytes, int64(0))
}

func TestByteStore_CanceledContext(t *testing.T) {
	bs := setupByteStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, bs.Put(ctx, "pay-1", []byte("x")))
	_, err := bs.Get(ctx, "pay-1")
	assert.Error(t, err)
}
