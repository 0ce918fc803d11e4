// Package snapshot persists compositions as an append-only history of
// versioned snapshots.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/inamate/compositor/internal/document"
)

var ErrNotFound = errors.New("composition not found")

// Record is the metadata row of a composition.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is one saved version of a composition. History listings leave
// Composition nil.
type Snapshot struct {
	ID            string                `json:"id"`
	CompositionID string                `json:"compositionId"`
	Version       int                   `json:"version"`
	CreatedAt     time.Time             `json:"createdAt"`
	Composition   *document.Composition `json:"composition,omitempty"`
}

// Store is implemented by PgStore and MemoryStore.
type Store interface {
	// Create inserts the record and saves comp as version 1.
	Create(ctx context.Context, rec Record, comp *document.Composition) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, ownerID string) ([]Record, error)
	Delete(ctx context.Context, id string) error
	// Latest returns the newest snapshot's composition.
	Latest(ctx context.Context, id string) (*document.Composition, error)
	// Save appends a new version. A composition without a record is
	// created unowned.
	Save(ctx context.Context, comp *document.Composition) (Snapshot, error)
	// History lists snapshots newest first, at most limit of them.
	History(ctx context.Context, id string, limit int) ([]Snapshot, error)
}
