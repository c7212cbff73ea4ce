package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Document keys used by the engine. Each holds one JSON document, read once
// at startup and cached in memory for the process lifetime by its owner.
const (
	KeyOfflineManifest = "offline_manifest"
	KeyProgressMap     = "progress_map"
	KeyDeviceID        = "device_id"
)

// MetadataStore is a small durable key-value store for structured JSON
// records, backed by SQLite. All operations are synchronous from the
// caller's perspective.
type MetadataStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenMetadataStore opens the metadata database at path.
// It configures WAL mode, sets pragmas, and runs schema migrations.
func OpenMetadataStore(path string, logger *slog.Logger) (*MetadataStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer; the engine serializes all metadata writes anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if logger != nil {
		logger.Info("metadata store opened", "path", path)
	}

	return &MetadataStore{db: db, logger: logger}, nil
}

// Close closes the metadata database.
func (s *MetadataStore) Close() error {
	return s.db.Close()
}

// ReadJSON loads the document at key into dest.
// Returns false when the key is absent. A document that exists but fails to
// parse is also reported as absent: local corruption must never take the app
// down, it just loses that cached state.
func (s *MetadataStore) ReadJSON(key string, dest any) (bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM documents WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read document %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(value), dest); err != nil {
		if s.logger != nil {
			s.logger.Warn("discarding corrupt metadata document", "key", key, "error", err)
		}
		return false, nil
	}
	return true, nil
}

// WriteJSON stores value as the document at key, replacing any previous
// document. Every write site recomputes the full document, so last-writer-
// wins at the key level is safe.
func (s *MetadataStore) WriteJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", key, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write document %s: %w", key, err)
	}
	return nil
}

// DeleteKey removes the document at key. No-op if absent.
func (s *MetadataStore) DeleteKey(key string) error {
	if _, err := s.db.Exec("DELETE FROM documents WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}
