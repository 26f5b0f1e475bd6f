// Package redis stores notes in Redis and drives live queries with pub/sub:
// every write publishes on a per-user channel and each subscription re-reads
// the user's notes when a message arrives.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/aretw0/jotter/pkg/core"
)

// Config holds the configuration for the Redis store.
type Config struct {
	// Client is used as-is when set; otherwise one is built from Addr.
	Client   *goredis.Client
	Addr     string
	Username string
	Password string
	DB       int

	// Prefix namespaces every key and channel. Defaults to "jotter".
	Prefix           string
	PingTimeout      time.Duration
	OperationTimeout time.Duration
	Logger           *slog.Logger
}

// Store implements core.Store on Redis.
//
// Layout: <prefix>:note:<id> holds the JSON note, <prefix>:user:<uid>:notes is
// the set of a user's note ids, and writes publish on <prefix>:changes:<uid>.
type Store struct {
	client     *goredis.Client
	ownsClient bool
	prefix     string
	opTime     time.Duration
	pingTTL    time.Duration
	logger     *slog.Logger
	hub        *core.Hub

	// NewID generates note identifiers. Defaults to random UUIDs.
	NewID func() string

	mu        sync.Mutex
	published int
	received  int
}

// New creates a store. It does not contact the server; see Initialize.
func New(cfg Config) (*Store, error) {
	client := cfg.Client
	ownsClient := false
	if client == nil {
		if cfg.Addr == "" {
			return nil, errors.New("redis address is required")
		}
		client = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		ownsClient = true
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "jotter"
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Store{
		client:     client,
		ownsClient: ownsClient,
		prefix:     cfg.Prefix,
		opTime:     cfg.OperationTimeout,
		pingTTL:    cfg.PingTimeout,
		logger:     cfg.Logger,
		hub:        core.NewHub(),
		NewID:      uuid.NewString,
	}, nil
}

// Initialize checks the server is reachable.
func (s *Store) Initialize(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.pingTTL)
	defer cancel()
	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("%w: could not connect to redis: %w", core.ErrRemoteUnavailable, err)
	}
	return nil
}

func (s *Store) noteKey(id string) string  { return fmt.Sprintf("%s:note:%s", s.prefix, id) }
func (s *Store) userKey(uid string) string { return fmt.Sprintf("%s:user:%s:notes", s.prefix, uid) }
func (s *Store) channel(uid string) string { return fmt.Sprintf("%s:changes:%s", s.prefix, uid) }

func (s *Store) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTime)
}

// Create implements core.Store.
func (s *Store) Create(ctx context.Context, n core.Note) (string, error) {
	if n.UserID == "" {
		return "", core.ErrAuthRequired
	}
	n = n.Clone()
	n.ID = s.NewID()
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to encode note: %w", err)
	}

	opCtx, cancel := s.op(ctx)
	defer cancel()

	created, err := s.client.SetNX(opCtx, s.noteKey(n.ID), data, 0).Result()
	if err != nil {
		return "", err
	}
	if !created {
		return "", fmt.Errorf("note %s already exists", n.ID)
	}
	if err := s.client.SAdd(opCtx, s.userKey(n.UserID), n.ID).Err(); err != nil {
		return "", err
	}
	s.publish(opCtx, n.UserID)
	return n.ID, nil
}

// Update implements core.Store. The read-modify-write runs in a WATCH
// transaction so concurrent writers cannot lose each other's fields.
func (s *Store) Update(ctx context.Context, userID, id string, patch core.NotePatch, updatedAt time.Time) error {
	opCtx, cancel := s.op(ctx)
	defer cancel()

	key := s.noteKey(id)
	err := s.client.Watch(opCtx, func(tx *goredis.Tx) error {
		n, err := s.owned(opCtx, tx, userID, id)
		if err != nil {
			return err
		}
		data, err := json.Marshal(patch.Apply(n, updatedAt))
		if err != nil {
			return fmt.Errorf("failed to encode note: %w", err)
		}
		_, err = tx.TxPipelined(opCtx, func(pipe goredis.Pipeliner) error {
			pipe.Set(opCtx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return err
	}
	s.publish(opCtx, userID)
	return nil
}

// Delete implements core.Store.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	opCtx, cancel := s.op(ctx)
	defer cancel()

	key := s.noteKey(id)
	err := s.client.Watch(opCtx, func(tx *goredis.Tx) error {
		if _, err := s.owned(opCtx, tx, userID, id); err != nil {
			return err
		}
		_, err := tx.TxPipelined(opCtx, func(pipe goredis.Pipeliner) error {
			pipe.Del(opCtx, key)
			pipe.SRem(opCtx, s.userKey(userID), id)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return err
	}
	s.publish(opCtx, userID)
	return nil
}

func (s *Store) owned(ctx context.Context, tx *goredis.Tx, userID, id string) (core.Note, error) {
	raw, err := tx.Get(ctx, s.noteKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return core.Note{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Note{}, err
	}
	var n core.Note
	if err := json.Unmarshal(raw, &n); err != nil {
		return core.Note{}, fmt.Errorf("failed to decode note %s: %w", id, err)
	}
	if n.UserID != userID {
		return core.Note{}, fmt.Errorf("%w: note %s", core.ErrPermissionDenied, id)
	}
	return n, nil
}

func (s *Store) publish(ctx context.Context, userID string) {
	if err := s.client.Publish(ctx, s.channel(userID), "changed").Err(); err != nil {
		s.logger.Warn("failed to publish change", "user", userID, "error", err)
		return
	}
	s.mu.Lock()
	s.published++
	s.mu.Unlock()
}

// Subscribe implements core.Store. The subscription is confirmed by the server
// and the first snapshot pushed before it returns.
func (s *Store) Subscribe(ctx context.Context, q core.Query) (core.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	uid := q.UserID()
	if uid == "" {
		return nil, core.ErrAuthRequired
	}

	ps := s.client.Subscribe(ctx, s.channel(uid))
	confirmCtx, cancel := s.op(ctx)
	defer cancel()
	if _, err := ps.Receive(confirmCtx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	feed := s.hub.Open(q, func() { _ = ps.Close() })
	s.refresh(ctx, feed)

	messages := ps.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = feed.Close()
				return
			case <-feed.Done():
				return
			case _, ok := <-messages:
				if !ok {
					feed.Push(core.Snapshot{Err: fmt.Errorf("%w: change feed closed", core.ErrRemoteUnavailable)})
					_ = feed.Close()
					return
				}
				s.mu.Lock()
				s.received++
				s.mu.Unlock()
				s.refresh(ctx, feed)
			}
		}
	}()

	s.logger.Debug("redis subscription opened", "query", q.String())
	return feed, nil
}

// refresh re-reads the user's notes and pushes the query result.
func (s *Store) refresh(ctx context.Context, f *core.Feed) {
	notes, err := s.load(ctx, f.Query().UserID())
	if err != nil {
		f.Push(core.Snapshot{Err: err})
		return
	}
	f.Push(core.Snapshot{Notes: f.Query().Apply(notes)})
}

func (s *Store) load(ctx context.Context, userID string) ([]core.Note, error) {
	opCtx, cancel := s.op(ctx)
	defer cancel()

	ids, err := s.client.SMembers(opCtx, s.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.noteKey(id)
	}
	values, err := s.client.MGet(opCtx, keys...).Result()
	if err != nil {
		return nil, err
	}

	notes := make([]core.Note, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var n core.Note
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			s.logger.Warn("skipping undecodable note", "id", ids[i], "error", err)
			continue
		}
		if n.UserID != userID {
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// ActiveListeners implements core.ListenerCounter.
func (s *Store) ActiveListeners() int {
	return s.hub.Len()
}

// Close releases every subscription, and the client when the store created it.
func (s *Store) Close() error {
	s.hub.CloseAll()
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "redis-store"
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Addr      string `json:"addr"`
	Prefix    string `json:"prefix"`
	Listeners int    `json:"listeners"`
	Published int    `json:"published"`
	Received  int    `json:"received"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreState{
		Addr:      s.client.Options().Addr,
		Prefix:    s.prefix,
		Listeners: s.hub.Len(),
		Published: s.published,
		Received:  s.received,
	}
}

var _ core.Store = (*Store)(nil)
var _ core.Initializer = (*Store)(nil)
var _ core.ListenerCounter = (*Store)(nil)
var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
