package core

import "sync"

// Feed is a Subscription fed by a store adapter.
// Delivery is latest-wins: a consumer that falls behind only sees the newest
// snapshot, since every snapshot is complete.
type Feed struct {
	query   Query
	ch      chan Snapshot
	onClose func()

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewFeed creates a feed for q. onClose runs once, after the feed is closed.
func NewFeed(q Query, onClose func()) *Feed {
	return &Feed{
		query:   q,
		ch:      make(chan Snapshot, 1),
		onClose: onClose,
		done:    make(chan struct{}),
	}
}

// Query returns the query the feed answers.
func (f *Feed) Query() Query { return f.query }

// Snapshots implements Subscription.
func (f *Feed) Snapshots() <-chan Snapshot { return f.ch }

// Done is closed when the feed is closed.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Push hands a snapshot to the consumer without blocking.
// A pending, unread snapshot is replaced. Pushing to a closed feed is a no-op.
func (f *Feed) Push(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- s:
		return
	default:
	}
	select {
	case <-f.ch:
	default:
	}
	f.ch <- s
}

// Close implements Subscription.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.ch)
	close(f.done)
	f.mu.Unlock()

	if f.onClose != nil {
		f.onClose()
	}
	return nil
}

// Hub tracks the open feeds of a store so changes can be fanned out to them.
type Hub struct {
	mu    sync.Mutex
	feeds map[*Feed]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{feeds: make(map[*Feed]struct{})}
}

// Open registers a feed for q. Closing the feed unregisters it and then runs release.
func (h *Hub) Open(q Query, release func()) *Feed {
	var f *Feed
	f = NewFeed(q, func() {
		h.mu.Lock()
		delete(h.feeds, f)
		h.mu.Unlock()
		if release != nil {
			release()
		}
	})
	h.mu.Lock()
	h.feeds[f] = struct{}{}
	h.mu.Unlock()
	return f
}

// Feeds returns the open feeds scoped to userID.
func (h *Hub) Feeds(userID string) []*Feed {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*Feed
	for f := range h.feeds {
		if f.query.UserID() == userID {
			out = append(out, f)
		}
	}
	return out
}

// Users returns the distinct user ids with at least one open feed.
func (h *Hub) Users() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for f := range h.feeds {
		uid := f.query.UserID()
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}

// Len returns the number of open feeds.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.feeds)
}

// CloseAll closes every open feed.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	feeds := make([]*Feed, 0, len(h.feeds))
	for f := range h.feeds {
		feeds = append(feeds, f)
	}
	h.mu.Unlock()
	for _, f := range feeds {
		_ = f.Close()
	}
}
