// Package memory provides a process-local core.Store with live queries.
// It is the default adapter and the reference the other adapters are tested against.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/google/uuid"

	"github.com/aretw0/jotter/pkg/core"
)

// Store keeps notes in a map and pushes a fresh snapshot to every affected
// subscription after each write.
type Store struct {
	mu     sync.RWMutex
	notes  map[string]core.Note
	hub    *core.Hub
	logger *slog.Logger

	// NewID generates note identifiers. Defaults to random UUIDs.
	NewID func() string

	failMu  sync.Mutex
	failErr error
}

// New creates an empty store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		notes:  make(map[string]core.Note),
		hub:    core.NewHub(),
		logger: logger,
		NewID:  uuid.NewString,
	}
}

// Seed inserts notes as-is, keeping their ids and timestamps.
func (s *Store) Seed(notes ...core.Note) {
	users := make(map[string]struct{})
	s.mu.Lock()
	for _, n := range notes {
		s.notes[n.ID] = n.Clone()
		users[n.UserID] = struct{}{}
	}
	s.mu.Unlock()
	for uid := range users {
		s.notify(uid)
	}
}

// Fail makes every open subscription report err, and every later write fail
// with it, until Recover is called.
func (s *Store) Fail(err error) {
	s.failMu.Lock()
	s.failErr = err
	s.failMu.Unlock()
	for _, uid := range s.hub.Users() {
		s.notify(uid)
	}
}

// Recover clears a failure injected with Fail and refreshes every subscription.
func (s *Store) Recover() {
	s.Fail(nil)
}

func (s *Store) failure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failErr
}

// Create implements core.Store.
func (s *Store) Create(ctx context.Context, n core.Note) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.failure(); err != nil {
		return "", err
	}
	if n.UserID == "" {
		return "", core.ErrAuthRequired
	}

	n = n.Clone()
	n.ID = s.NewID()
	s.mu.Lock()
	if _, exists := s.notes[n.ID]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("note %s already exists", n.ID)
	}
	s.notes[n.ID] = n
	s.mu.Unlock()

	s.notify(n.UserID)
	return n.ID, nil
}

// Update implements core.Store.
func (s *Store) Update(ctx context.Context, userID, id string, patch core.NotePatch, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.failure(); err != nil {
		return err
	}

	s.mu.Lock()
	n, ok := s.notes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if n.UserID != userID {
		s.mu.Unlock()
		return fmt.Errorf("%w: note %s", core.ErrPermissionDenied, id)
	}
	s.notes[id] = patch.Apply(n, updatedAt)
	s.mu.Unlock()

	s.notify(userID)
	return nil
}

// Delete implements core.Store.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.failure(); err != nil {
		return err
	}

	s.mu.Lock()
	n, ok := s.notes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if n.UserID != userID {
		s.mu.Unlock()
		return fmt.Errorf("%w: note %s", core.ErrPermissionDenied, id)
	}
	delete(s.notes, id)
	s.mu.Unlock()

	s.notify(userID)
	return nil
}

// Subscribe implements core.Store. The first snapshot is pushed before it returns.
func (s *Store) Subscribe(ctx context.Context, q core.Query) (core.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.UserID() == "" {
		return nil, core.ErrAuthRequired
	}

	feed := s.hub.Open(q, nil)
	s.refresh(feed)

	go func() {
		select {
		case <-ctx.Done():
			_ = feed.Close()
		case <-feed.Done():
		}
	}()

	s.logger.Debug("memory subscription opened", "query", q.String())
	return feed, nil
}

// ActiveListeners implements core.ListenerCounter.
func (s *Store) ActiveListeners() int {
	return s.hub.Len()
}

// Len returns the number of stored notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// Get returns a stored note by id.
func (s *Store) Get(id string) (core.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	return n.Clone(), ok
}

// Close releases every open subscription.
func (s *Store) Close() error {
	s.hub.CloseAll()
	return nil
}

func (s *Store) notify(userID string) {
	for _, f := range s.hub.Feeds(userID) {
		s.refresh(f)
	}
}

func (s *Store) refresh(f *core.Feed) {
	if err := s.failure(); err != nil {
		f.Push(core.Snapshot{Err: err})
		return
	}
	// Push under the read lock so a snapshot can never overtake a newer one.
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]core.Note, 0, len(s.notes))
	for _, n := range s.notes {
		all = append(all, n)
	}
	f.Push(core.Snapshot{Notes: f.Query().Apply(all)})
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory-store"
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Notes     int  `json:"notes"`
	Listeners int  `json:"listeners"`
	Failing   bool `json:"failing"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	return StoreState{
		Notes:     s.Len(),
		Listeners: s.hub.Len(),
		Failing:   s.failure() != nil,
	}
}

var _ core.Store = (*Store)(nil)
var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
