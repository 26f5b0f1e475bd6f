// Package auth provides core.AuthProvider implementations and the bearer
// tokens the HTTP surface authenticates with.
package auth

import (
	"context"
	"sync"

	"github.com/aretw0/jotter/pkg/core"
)

// Session is a settable core.AuthProvider. It starts in the loading state
// until SignIn or SignOut is called.
type Session struct {
	mu       sync.Mutex
	current  core.Session
	watchers map[chan core.Session]struct{}
}

// NewSession creates a provider in the loading state.
func NewSession() *Session {
	return &Session{
		current:  core.Session{State: core.SessionLoading},
		watchers: make(map[chan core.Session]struct{}),
	}
}

// Static returns a provider already signed in as id.
// An empty id yields a signed-out provider.
func Static(id string) *Session {
	s := NewSession()
	if id == "" {
		s.current = core.Session{State: core.SessionSignedOut}
	} else {
		s.current = core.Session{State: core.SessionSignedIn, User: core.Identity{ID: id}}
	}
	return s
}

// Session implements core.AuthProvider.
func (s *Session) Session() core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SignIn switches the provider to user.
func (s *Session) SignIn(user core.Identity) {
	s.set(core.Session{State: core.SessionSignedIn, User: user})
}

// SignOut clears the user.
func (s *Session) SignOut() {
	s.set(core.Session{State: core.SessionSignedOut})
}

func (s *Session) set(next core.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next == s.current {
		return
	}
	s.current = next
	for ch := range s.watchers {
		// Only the latest state matters to a slow watcher.
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

// Watch implements core.AuthProvider. The channel closes when ctx ends.
func (s *Session) Watch(ctx context.Context) <-chan core.Session {
	ch := make(chan core.Session, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

var _ core.AuthProvider = (*Session)(nil)
