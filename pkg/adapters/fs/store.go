// Package fs stores notes as JSON or YAML files, one directory per user.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/aretw0/jotter/pkg/core"
)

// NotePattern matches note files relative to the store root: one directory per user.
const NotePattern = "*/*.{json,yaml,yml}"

// Config holds the configuration for the filesystem store.
type Config struct {
	Path      string
	Format    string // "json" (default) or "yaml"; the format of new notes
	SystemDir string // e.g. ".jotter"; holds the parse cache
	MustExist bool
	ReadOnly  bool
	Strict    bool
	Logger    *slog.Logger
	// Debounce is the quiet period before external edits are re-read. Zero means 50ms.
	Debounce time.Duration
	// ErrorHandler receives watcher failures. Optional.
	ErrorHandler func(error)
}

// Store implements core.Store on a directory tree, <root>/<userID>/<noteID>.<ext>.
// Notes are parsed once into memory; writes go to disk first, then update the
// in-memory copy and push fresh snapshots. Edits made outside the process are
// picked up by the watcher started with Watch.
type Store struct {
	Path string

	config      Config
	serializer  Serializer
	serializers map[string]Serializer
	cache       *cache
	hub         *core.Hub

	// NewID generates note identifiers. Defaults to random UUIDs.
	NewID func() string

	mu            sync.RWMutex
	notes         map[string]core.Note // by note id
	files         map[string]string    // note id -> slash path relative to root
	watcherActive bool
	lastReconcile *time.Time
	supervisor    interface{ Stop(context.Context) error }

	writeMu sync.Mutex
}

// NewStore creates a filesystem-backed store. Call Initialize before use.
func NewStore(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, errors.New("store path is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.SystemDir == "" {
		config.SystemDir = ".jotter"
	}
	if config.Debounce <= 0 {
		config.Debounce = 50 * time.Millisecond
	}
	ser, err := SerializerFor(config.Format, config.Strict)
	if err != nil {
		return nil, err
	}

	return &Store{
		Path:        config.Path,
		config:      config,
		serializer:  ser,
		serializers: DefaultSerializers(config.Strict),
		cache:       newCache(config.Path, config.SystemDir),
		hub:         core.NewHub(),
		NewID:       uuid.NewString,
		notes:       make(map[string]core.Note),
		files:       make(map[string]string),
	}, nil
}

// Initialize creates the root directory (unless MustExist) and loads every note.
func (s *Store) Initialize(ctx context.Context) error {
	if s.config.MustExist {
		info, err := os.Stat(s.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("store path does not exist: %s", s.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", s.Path)
		}
	} else if !s.config.ReadOnly {
		if err := os.MkdirAll(s.Path, 0755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	if err := s.cache.Load(); err != nil {
		s.config.Logger.Warn("ignoring unreadable cache", "error", err)
	}
	if _, err := s.Reconcile(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Store) readOnlyErr() error {
	if s.config.ReadOnly {
		return fmt.Errorf("%w: %s", core.ErrReadOnly, s.Path)
	}
	return nil
}

// Create implements core.Store.
func (s *Store) Create(ctx context.Context, n core.Note) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.readOnlyErr(); err != nil {
		return "", err
	}
	if n.UserID == "" {
		return "", core.ErrAuthRequired
	}
	if !validSegment(n.UserID) {
		return "", fmt.Errorf("invalid user id %q", n.UserID)
	}

	n = n.Clone()
	n.ID = s.NewID()
	rel := path.Join(n.UserID, n.ID+s.serializer.Ext())

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := os.MkdirAll(filepath.Join(s.Path, n.UserID), 0755); err != nil {
		return "", fmt.Errorf("failed to create user directory: %w", err)
	}
	if err := s.write(rel, n); err != nil {
		return "", err
	}
	s.notify(n.UserID)
	return n.ID, nil
}

// Update implements core.Store.
func (s *Store) Update(ctx context.Context, userID, id string, patch core.NotePatch, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.readOnlyErr(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, rel, err := s.owned(userID, id)
	if err != nil {
		return err
	}
	if err := s.write(rel, patch.Apply(n, updatedAt)); err != nil {
		return err
	}
	s.notify(userID)
	return nil
}

// Delete implements core.Store.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.readOnlyErr(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, rel, err := s.owned(userID, id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.Path, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete note file: %w", err)
	}

	s.mu.Lock()
	delete(s.notes, id)
	delete(s.files, id)
	s.mu.Unlock()
	s.cache.Delete(rel)
	s.saveCache()

	s.notify(userID)
	return nil
}

func (s *Store) owned(userID, id string) (core.Note, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return core.Note{}, "", fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if n.UserID != userID {
		return core.Note{}, "", fmt.Errorf("%w: note %s", core.ErrPermissionDenied, id)
	}
	return n, s.files[id], nil
}

// write serializes n to rel and records it. Caller holds s.writeMu.
func (s *Store) write(rel string, n core.Note) error {
	ser, ok := s.serializers[path.Ext(rel)]
	if !ok {
		ser = s.serializer
	}
	data, err := ser.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to serialize note %s: %w", n.ID, err)
	}

	full := filepath.Join(s.Path, filepath.FromSlash(rel))
	if err := writeFileAtomic(full, data, 0644); err != nil {
		return err
	}

	var mtime time.Time
	if info, err := os.Stat(full); err == nil {
		mtime = info.ModTime()
	}
	s.cache.Set(rel, &indexEntry{Note: n, LastModified: mtime})
	s.saveCache()

	s.mu.Lock()
	s.notes[n.ID] = n
	s.files[n.ID] = rel
	s.mu.Unlock()
	return nil
}

func (s *Store) saveCache() {
	if s.config.ReadOnly {
		return
	}
	if err := s.cache.Save(); err != nil {
		s.config.Logger.Warn("failed to persist cache", "error", err)
	}
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

	s.config.Logger.Debug("fs subscription opened", "query", q.String())
	return feed, nil
}

// ActiveListeners implements core.ListenerCounter.
func (s *Store) ActiveListeners() int {
	return s.hub.Len()
}

// Close stops the watcher, releases every subscription and flushes the cache.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.stopWatch(ctx)
	s.hub.CloseAll()
	s.saveCache()
	return err
}

func (s *Store) notify(userID string) {
	for _, f := range s.hub.Feeds(userID) {
		s.refresh(f)
	}
}

func (s *Store) refresh(f *core.Feed) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid := f.Query().UserID()
	all := make([]core.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if n.UserID == uid {
			all = append(all, n)
		}
	}
	f.Push(core.Snapshot{Notes: f.Query().Apply(all)})
}

// Reconcile re-reads the tree, parsing only files whose mtime changed since
// they were last seen, and pushes snapshots to the users whose notes changed.
// It returns those users.
func (s *Store) Reconcile(ctx context.Context) ([]string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	notes := make(map[string]core.Note)
	files := make(map[string]string)
	keep := make(map[string]bool)

	err := filepath.WalkDir(s.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == s.Path {
				return filepath.SkipDir
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, relErr := filepath.Rel(s.Path, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || strings.Contains(rel, "/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isNoteFile(rel) {
			return nil
		}

		n, ok := s.load(rel, d)
		if !ok {
			return nil
		}
		if prev, dup := files[n.ID]; dup {
			s.config.Logger.Warn("duplicate note id, keeping first", "id", n.ID, "kept", prev, "skipped", rel)
			return nil
		}
		notes[n.ID] = n
		files[n.ID] = rel
		keep[rel] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan store: %w", err)
	}

	s.cache.Prune(keep)
	s.saveCache()

	s.mu.Lock()
	changed := changedUsers(s.notes, notes)
	s.notes = notes
	s.files = files
	now := time.Now()
	s.lastReconcile = &now
	s.mu.Unlock()

	for _, uid := range changed {
		s.notify(uid)
	}
	return changed, nil
}

// load returns the note stored at rel, from the cache when the file is unchanged.
func (s *Store) load(rel string, d fs.DirEntry) (core.Note, bool) {
	info, err := d.Info()
	if err != nil {
		return core.Note{}, false
	}
	if entry, ok := s.cache.Get(rel, info.ModTime()); ok {
		return entry.Note, true
	}

	ser, ok := s.serializers[path.Ext(rel)]
	if !ok {
		return core.Note{}, false
	}
	data, err := os.ReadFile(filepath.Join(s.Path, filepath.FromSlash(rel)))
	if err != nil {
		s.config.Logger.Warn("failed to read note", "path", rel, "error", err)
		return core.Note{}, false
	}
	n, err := ser.Unmarshal(data)
	if err != nil {
		s.config.Logger.Warn("skipping unparsable note", "path", rel, "error", err)
		return core.Note{}, false
	}

	// The location is authoritative: a note belongs to the directory it lives in.
	dir, file := path.Split(rel)
	owner := strings.TrimSuffix(dir, "/")
	id := strings.TrimSuffix(file, path.Ext(file))
	if n.UserID != "" && n.UserID != owner {
		s.config.Logger.Warn("skipping note stored under another user", "path", rel, "userId", n.UserID)
		return core.Note{}, false
	}
	n.UserID = owner
	n.ID = id
	n.Title = core.NormalizeTitle(n.Title)
	n.Tags = core.NormalizeTags(n.Tags)

	s.cache.Set(rel, &indexEntry{Note: n, LastModified: info.ModTime()})
	return n, true
}

func changedUsers(before, after map[string]core.Note) []string {
	seen := make(map[string]bool)
	var out []string
	mark := func(uid string) {
		if !seen[uid] {
			seen[uid] = true
			out = append(out, uid)
		}
	}
	for id, n := range after {
		prev, ok := before[id]
		if !ok || !sameNote(prev, n) {
			mark(n.UserID)
			if ok && prev.UserID != n.UserID {
				mark(prev.UserID)
			}
		}
	}
	for id, n := range before {
		if _, ok := after[id]; !ok {
			mark(n.UserID)
		}
	}
	return out
}

func sameNote(a, b core.Note) bool {
	if a.ID != b.ID || a.UserID != b.UserID || a.Title != b.Title || a.Content != b.Content ||
		a.Color != b.Color || a.IsFavorite != b.IsFavorite || a.IsArchived != b.IsArchived ||
		!a.CreatedAt.Equal(b.CreatedAt) || !a.UpdatedAt.Equal(b.UpdatedAt) || len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return true
}

func isNoteFile(rel string) bool {
	if isTempFile(rel) {
		return false
	}
	ok, err := doublestar.Match(NotePattern, rel)
	return err == nil && ok
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.HasPrefix(s, ".") &&
		!strings.ContainsAny(s, `/\`)
}

// Len returns the number of loaded notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// Get returns a loaded note by id.
func (s *Store) Get(id string) (core.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	return n.Clone(), ok
}

var _ core.Store = (*Store)(nil)
var _ core.Initializer = (*Store)(nil)
var _ core.ListenerCounter = (*Store)(nil)
