// Package store provides the two local persistence layers of the engine:
// a Badger-backed byte store for opaque payload blobs and a SQLite-backed
// metadata store for structured JSON documents.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/readwellapp/readwell-server/internal/errors"
)

// ErrPayloadNotFound is returned when a payload ref does not resolve.
var ErrPayloadNotFound = errors.NotFound("payload not found")

// Capacity is a best-effort storage usage estimate.
type Capacity struct {
	UsedBytes  int64
	TotalBytes int64
}

// ByteStore is a durable, content-addressable blob store for text and audio
// payloads, backed by Badger.
type ByteStore struct {
	db     *badger.DB
	logger *slog.Logger

	// budget is the configured storage ceiling, reported as the capacity
	// total. The platform gives no hard quota here, so the budget doubles as
	// the fallback estimate.
	budget int64
}

// OpenByteStore opens (or creates) the blob database at path.
func OpenByteStore(path string, budgetBytes int64, logger *slog.Logger) (*ByteStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("byte store opened", "path", path, "budget_bytes", budgetBytes)
	}

	return &ByteStore{db: db, logger: logger, budget: budgetBytes}, nil
}

// Close gracefully closes the blob database.
func (s *ByteStore) Close() error {
	return s.db.Close()
}

// Put stores a payload under the given ref.
func (s *ByteStore) Put(ctx context.Context, ref string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(ref), data)
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageWriteFailed, "write payload "+ref)
	}
	return nil
}

// Get retrieves a payload by ref. Returns ErrPayloadNotFound if the ref does
// not resolve.
func (s *ByteStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ref))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrPayloadNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Has reports whether a ref resolves to a stored payload.
func (s *ByteStore) Has(ctx context.Context, ref string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(ref))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a payload. Deleting an absent ref is a no-op.
func (s *ByteStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(ref))
	})
}

// DeleteAll removes every stored payload.
func (s *ByteStore) DeleteAll() error {
	return s.db.DropAll()
}

// EstimateCapacity reports actual on-disk usage against the configured
// budget. The usage figure comes from Badger's size accounting and reflects
// real bytes written, unlike the manifest's duration-derived audio estimate.
func (s *ByteStore) EstimateCapacity(ctx context.Context) (Capacity, error) {
	if err := ctx.Err(); err != nil {
		return Capacity{}, err
	}

	lsm, vlog := s.db.Size()
	return Capacity{
		UsedBytes:  lsm + vlog,
		TotalBytes: s.budget,
	}, nil
}
