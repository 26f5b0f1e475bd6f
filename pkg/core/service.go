package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
)

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	Logger *slog.Logger
	// MaxTagValues caps the tags of a single array-contains-any clause. Zero means DefaultMaxTagValues.
	MaxTagValues int
	// EventBuffer is the capacity of each Watch channel. Zero means 1.
	EventBuffer int
	// Now overrides the clock used to stamp writes.
	Now func() time.Time
}

type subKind int

const (
	kindView subKind = iota
	kindCatalog
)

func (k subKind) String() string {
	if k == kindCatalog {
		return "catalog"
	}
	return "view"
}

// liveQuery is one open subscription and the latest state it delivered.
type liveQuery struct {
	gen   uint64
	query Query
	sub   Subscription
	notes []Note
	ready bool
	err   error
}

// Service is a user session over a Store: it owns the live subscriptions for the
// current user and filters and derives the View its listeners receive.
//
// Two subscriptions are kept per signed-in user: the view query built from the
// filters, and the catalog query (every note of the user) the aggregates are
// computed from. Changing the filters replaces only the view subscription;
// changing the user replaces both.
type Service struct {
	store        Store
	logger       *slog.Logger
	maxTagValues int
	bufferSize   int
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	userID    string
	filters   NoteFilters
	view      *liveQuery
	catalog   *liveQuery
	gen       uint64
	listeners map[chan View]struct{}
	closed    bool

	opened   int
	released int
}

// NewService creates a session over store. It starts signed out with DefaultFilters.
func NewService(store Store, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = 1
	}
	maxTags := cfg.MaxTagValues
	if maxTags <= 0 {
		maxTags = DefaultMaxTagValues
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:        store,
		logger:       logger,
		maxTagValues: maxTags,
		bufferSize:   buffer,
		now:          now,
		ctx:          ctx,
		cancel:       cancel,
		filters:      DefaultFilters(),
		listeners:    make(map[chan View]struct{}),
	}
}

// UserID returns the current user, or "" when signed out.
func (s *Service) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Filters returns the current filters.
func (s *Service) Filters() NoteFilters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters.Clone()
}

// SetUser switches the session to userID. Both subscriptions of the previous
// user are released first. An empty userID leaves the session with no
// subscription and an empty view.
func (s *Service) SetUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if userID == s.userID {
		return nil
	}

	s.release(&s.view)
	s.release(&s.catalog)
	s.userID = userID

	if userID != "" {
		s.logger.Debug("session user changed", "user", userID)
		if q, err := CatalogQuery(userID); err == nil {
			s.catalog = s.open(kindCatalog, q)
		}
		q, err := BuildQuery(userID, s.filters, s.maxTagValues)
		if err != nil {
			s.view = &liveQuery{err: err, ready: true}
		} else {
			s.view = s.open(kindView, q)
		}
	} else {
		s.logger.Debug("session signed out")
	}

	s.publish()
	return nil
}

// FollowAuth binds the session user to provider: the current session is applied
// immediately and every later change until ctx ends. Anything but a signed-in
// session clears the user.
func (s *Service) FollowAuth(ctx context.Context, provider AuthProvider) error {
	if err := s.SetUser(ctx, provider.Session().UserID()); err != nil {
		return err
	}

	changes := provider.Watch(ctx)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.ctx.Done():
				return nil
			case sess, ok := <-changes:
				if !ok {
					return nil
				}
				if err := s.SetUser(ctx, sess.UserID()); err != nil && !errors.Is(err, ErrClosed) {
					return err
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("auth follower stopped", "error", err)
	}))
	return nil
}

// SetFilters applies new filters. The constraints are validated first; when they
// cannot be expressed (ErrQueryConstraint) the error is returned and the current
// subscription and filters are kept. Otherwise, if the filters changed, the view
// subscription is released before its replacement is opened.
func (s *Service) SetFilters(ctx context.Context, f NoteFilters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.SortBy == "" {
		f.SortBy = SortDateUpdated
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if f.Equal(s.filters) {
		return nil
	}

	var q Query
	if s.userID != "" {
		var err error
		if q, err = BuildQuery(s.userID, f, s.maxTagValues); err != nil {
			return err
		}
	} else if len(f.SelectedTags) > s.maxTagValues {
		return fmt.Errorf("%w: %d tags selected, the store accepts at most %d",
			ErrQueryConstraint, len(f.SelectedTags), s.maxTagValues)
	}

	s.filters = f.Clone()
	if s.userID != "" {
		s.release(&s.view)
		s.view = s.open(kindView, q)
		s.logger.Debug("filters changed", "query", q.String())
	}
	s.publish()
	return nil
}

// UpdateFilters applies fn to a copy of the current filters and sets the result.
func (s *Service) UpdateFilters(ctx context.Context, fn func(NoteFilters) NoteFilters) error {
	return s.SetFilters(ctx, fn(s.Filters()))
}

// open subscribes to q and starts draining it. Caller holds s.mu.
func (s *Service) open(kind subKind, q Query) *liveQuery {
	s.gen++
	lq := &liveQuery{gen: s.gen, query: q}

	sub, err := s.store.Subscribe(s.ctx, q)
	if err != nil {
		lq.err = wrapRemote(err)
		lq.ready = true
		s.logger.Error("subscribe failed", "kind", kind, "query", q.String(), "error", err)
		return lq
	}
	lq.sub = sub
	s.opened++

	gen := lq.gen
	lifecycle.Go(s.ctx, func(ctx context.Context) error {
		for snap := range sub.Snapshots() {
			s.deliver(kind, gen, snap)
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("subscription pump failed", "kind", kind, "error", err)
	}))
	return lq
}

// release closes the subscription held in *slot and clears it. Caller holds s.mu.
func (s *Service) release(slot **liveQuery) {
	lq := *slot
	*slot = nil
	if lq == nil || lq.sub == nil {
		return
	}
	if err := lq.sub.Close(); err != nil {
		s.logger.Warn("failed to release subscription", "query", lq.query.String(), "error", err)
	}
	s.released++
}

// deliver records a snapshot unless it comes from a subscription that was already replaced.
func (s *Service) deliver(kind subKind, gen uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lq := s.view
	if kind == kindCatalog {
		lq = s.catalog
	}
	if lq == nil || lq.gen != gen || s.closed {
		return
	}

	lq.ready = true
	if snap.Err != nil {
		lq.notes = nil
		lq.err = wrapRemote(snap.Err)
		s.logger.Error("live query failed", "kind", kind, "query", lq.query.String(), "error", snap.Err)
	} else {
		lq.notes = snap.Notes
		lq.err = nil
	}
	s.publish()
}

func wrapRemote(err error) error {
	switch {
	case errors.Is(err, ErrQueryConstraint),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrAuthRequired),
		errors.Is(err, ErrRemoteUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
}

// View returns the current derived view.
func (s *Service) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.derive()
}

// derive builds the view from the latest state. Caller holds s.mu.
func (s *Service) derive() View {
	if s.userID == "" {
		v := Derive(nil, nil, s.filters)
		v.Ready = true
		return v
	}

	var snapshot, catalog []Note
	ready := true
	var err error
	if s.view != nil {
		snapshot = s.view.notes
		ready = ready && s.view.ready
		err = s.view.err
	}
	if s.catalog != nil {
		catalog = s.catalog.notes
		ready = ready && s.catalog.ready
		if err == nil {
			err = s.catalog.err
		}
	}

	v := Derive(snapshot, catalog, s.filters)
	v.UserID = s.userID
	v.Ready = ready
	v.Err = err
	return v
}

// Watch delivers the current view and every later one until ctx ends or the
// service closes. Slow readers only miss intermediate views, never the latest.
func (s *Service) Watch(ctx context.Context) <-chan View {
	ch := make(chan View, s.bufferSize)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	s.listeners[ch] = struct{}{}
	ch <- s.derive()
	s.mu.Unlock()

	lifecycle.Go(ctx, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
		return nil
	})
	return ch
}

// Await blocks until the view is ready (or failed) for the current user and filters.
func (s *Service) Await(ctx context.Context) (View, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	views := s.Watch(watchCtx)
	for {
		select {
		case <-ctx.Done():
			return View{}, ctx.Err()
		case v, ok := <-views:
			if !ok {
				if err := ctx.Err(); err != nil {
					return View{}, err
				}
				return View{}, ErrClosed
			}
			if v.Err != nil {
				return v, v.Err
			}
			if v.Ready {
				return v, nil
			}
		}
	}
}

// publish sends the current view to every listener, replacing an unread one
// when a listener's buffer is full. Caller holds s.mu.
func (s *Service) publish() {
	if len(s.listeners) == 0 {
		return
	}
	v := s.derive()
	for ch := range s.listeners {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Close releases every subscription and listener.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.release(&s.view)
	s.release(&s.catalog)
	for ch := range s.listeners {
		delete(s.listeners, ch)
		close(ch)
	}
	s.cancel()
	return nil
}

// --- Writes ---

func (s *Service) requireUser() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrClosed
	}
	if s.userID == "" {
		return "", ErrAuthRequired
	}
	return s.userID, nil
}

// Create persists a new note for the current user and returns its id.
// The note shows up in the view with the next snapshot.
func (s *Service) Create(ctx context.Context, in NoteInput) (string, error) {
	userID, err := s.requireUser()
	if err != nil {
		return "", err
	}
	n := NewNote("", userID, in, s.now())
	id, err := s.store.Create(ctx, n)
	if err != nil {
		return "", fmt.Errorf("%w: create: %w", ErrWriteFailure, err)
	}
	s.logger.Debug("note created", "id", id, "user", userID)
	return id, nil
}

// Update applies a partial update to a note of the current user.
func (s *Service) Update(ctx context.Context, id string, patch NotePatch) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: note ID cannot be empty", ErrWriteFailure)
	}
	if err := s.store.Update(ctx, userID, id, patch, s.now()); err != nil {
		return fmt.Errorf("%w: update %s: %w", ErrWriteFailure, id, err)
	}
	s.logger.Debug("note updated", "id", id, "user", userID)
	return nil
}

// Delete removes a note of the current user.
func (s *Service) Delete(ctx context.Context, id string) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: note ID cannot be empty", ErrWriteFailure)
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrWriteFailure, id, err)
	}
	s.logger.Debug("note deleted", "id", id, "user", userID)
	return nil
}

// ToggleFavorite flips the favorite flag of a note known to the session.
func (s *Service) ToggleFavorite(ctx context.Context, id string) error {
	n, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fav := !n.IsFavorite
	return s.Update(ctx, id, NotePatch{IsFavorite: &fav})
}

// ToggleArchive flips the archived flag of a note known to the session.
func (s *Service) ToggleArchive(ctx context.Context, id string) error {
	n, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	archived := !n.IsArchived
	return s.Update(ctx, id, NotePatch{IsArchived: &archived})
}

// Lookup finds a note in the latest catalog or view snapshot.
func (s *Service) Lookup(id string) (Note, bool) {
	return s.lookup(id)
}

func (s *Service) lookup(id string) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, lq := range []*liveQuery{s.catalog, s.view} {
		if lq == nil {
			continue
		}
		for _, n := range lq.notes {
			if n.ID == id {
				return n.Clone(), true
			}
		}
	}
	return Note{}, false
}
