package core

import (
	"context"
	"time"
)

// Store defines the contract for persisting notes and observing live query results.
// Adhering to this interface keeps the core independent of the underlying
// document store (in-memory, filesystem, Redis, ...).
type Store interface {
	// Create persists a new note and returns the identifier assigned by the store.
	// n.ID is ignored; n.UserID must be set.
	Create(ctx context.Context, n Note) (string, error)

	// Update merges patch into the note owned by userID and sets UpdatedAt.
	Update(ctx context.Context, userID, id string, patch NotePatch, updatedAt time.Time) error

	// Delete removes the note owned by userID unconditionally.
	Delete(ctx context.Context, userID, id string) error

	// Subscribe opens a live query. The subscription delivers the complete
	// current result set once it is established and again after every change
	// that may affect it, until Close is called or ctx ends.
	Subscribe(ctx context.Context, q Query) (Subscription, error)
}

// Snapshot is a full, consistent result set for a query, or the error that
// prevented producing one.
type Snapshot struct {
	Notes []Note
	Err   error
}

// Subscription is an open live query.
type Subscription interface {
	// Snapshots is closed once the subscription is released.
	Snapshots() <-chan Snapshot
	// Close releases the remote listener. It is safe to call more than once.
	Close() error
}

// Initializer is implemented by stores that need setup before use (directories, connectivity checks).
type Initializer interface {
	Initialize(ctx context.Context) error
}

// ListenerCounter is implemented by stores that can report how many live listeners they hold.
type ListenerCounter interface {
	ActiveListeners() int
}
