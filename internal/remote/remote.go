// Package remote talks to the progress sync backend. The backend holds one
// reading-progress document per account and streams document updates to
// subscribed devices.
package remote

import (
	"context"

	"github.com/readwellapp/readwell-server/internal/domain"
)

// Store is the remote progress document store. An HTTP implementation lives
// in this package; tests substitute an in-memory fake.
type Store interface {
	// GetDocument fetches the current remote document. Returns (nil, nil)
	// when no document has ever been pushed.
	GetDocument(ctx context.Context) (*domain.RemoteDocument, error)

	// UpsertDocument writes the local document to the remote. The remote
	// merges it with its stored state rather than blindly replacing it.
	UpsertDocument(ctx context.Context, doc *domain.RemoteDocument) error

	// Subscribe streams remote document updates until the returned cancel
	// func is called or ctx ends. Every update pushed by any device is
	// delivered, including this device's own writes.
	Subscribe(ctx context.Context, fn func(*domain.RemoteDocument)) (func(), error)
}
