package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMetadataStore(t *testing.T) *MetadataStore {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms, err := OpenMetadataStore(filepath.Join(t.TempDir(), "metadata.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })
	return ms
}

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMetadataStore_RoundTrip(t *testing.T) {
	ms := setupMetadataStore(t)

	require.NoError(t, ms.WriteJSON("doc", testDoc{Name: "ch1", Count: 3}))

	var got testDoc
	found, err := ms.ReadJSON("doc", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testDoc{Name: "ch1", Count: 3}, got)
}

func TestMetadataStore_MissingKey(t *testing.T) {
	ms := setupMetadataStore(t)

	var got testDoc
	found, err := ms.ReadJSON("nope", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, got)
}

func TestMetadataStore_Upsert(t *testing.T) {
	ms := setupMetadataStore(t)

	require.NoError(t, ms.WriteJSON("doc", testDoc{Name: "old"}))
	require.NoError(t, ms.WriteJSON("doc", testDoc{Name: "new"}))

	var got testDoc
	found, err := ms.ReadJSON("doc", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", got.Name)
}

func TestMetadataStore_CorruptValueTreatedAsAbsent(t *testing.T) {
	ms := setupMetadataStore(t)

	_, err := ms.db.Exec(
		`INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)`,
		"doc", "{not json", "2026-03-01T10:00:00Z",
	)
	require.NoError(t, err)

	var got testDoc
	found, err := ms.ReadJSON("doc", &got)
	require.NoError(t, err, "a corrupt document reads as absent, not as a failure")
	assert.False(t, found)
}

func TestMetadataStore_DeleteKey(t *testing.T) {
	ms := setupMetadataStore(t)

	require.NoError(t, ms.WriteJSON("doc", testDoc{Name: "ch1"}))
	require.NoError(t, ms.DeleteKey("doc"))

	var got testDoc
	found, err := ms.ReadJSON("doc", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting an absent key is not an error.
	require.NoError(t, ms.DeleteKey("doc"))
}
