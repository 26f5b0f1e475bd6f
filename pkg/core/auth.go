package core

import "context"

// SessionState is the lifecycle stage of an authentication session.
type SessionState string

const (
	SessionLoading   SessionState = "loading"
	SessionSignedIn  SessionState = "signed-in"
	SessionSignedOut SessionState = "signed-out"
)

// Identity describes the signed-in user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is a point-in-time view of the authentication state.
type Session struct {
	State SessionState `json:"state"`
	User  Identity     `json:"user"`
}

// UserID returns the user id when signed in, or "" otherwise.
func (s Session) UserID() string {
	if s.State != SessionSignedIn {
		return ""
	}
	return s.User.ID
}

// AuthProvider is a read-only source of the current user.
type AuthProvider interface {
	// Session returns the current state.
	Session() Session
	// Watch delivers every later state change until ctx ends.
	Watch(ctx context.Context) <-chan Session
}
