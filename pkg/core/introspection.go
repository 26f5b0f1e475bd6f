package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	UserID              string      `json:"user_id,omitempty"`
	Filters             NoteFilters `json:"filters"`
	ViewQuery           string      `json:"view_query,omitempty"`
	ActiveSubscriptions int         `json:"active_subscriptions"`
	OpenedTotal         int         `json:"opened_total"`
	ReleasedTotal       int         `json:"released_total"`
	Listeners           int         `json:"listeners"`
	EventBufferSize     int         `json:"event_buffer_size"`
	MaxTagValues        int         `json:"max_tag_values"`
	StoreType           string      `json:"store_type"`
	StoreListeners      int         `json:"store_listeners,omitempty"`
	Closed              bool        `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	storeType := "unknown"
	if s.store != nil {
		storeType = "store"
		if comp, ok := s.store.(introspection.Component); ok {
			storeType = comp.ComponentType()
		}
	}

	active := 0
	var viewQuery string
	for _, lq := range []*liveQuery{s.view, s.catalog} {
		if lq != nil && lq.sub != nil {
			active++
		}
	}
	if s.view != nil && s.view.sub != nil {
		viewQuery = s.view.query.String()
	}

	state := ServiceState{
		UserID:              s.userID,
		Filters:             s.filters.Clone(),
		ViewQuery:           viewQuery,
		ActiveSubscriptions: active,
		OpenedTotal:         s.opened,
		ReleasedTotal:       s.released,
		Listeners:           len(s.listeners),
		EventBufferSize:     s.bufferSize,
		MaxTagValues:        s.maxTagValues,
		StoreType:           storeType,
		Closed:              s.closed,
	}
	if lc, ok := s.store.(ListenerCounter); ok {
		state.StoreListeners = lc.ActiveListeners()
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
