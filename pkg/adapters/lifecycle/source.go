// Package lifecycle exposes session views as a lifecycle.Source.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/jotter/pkg/core"
)

type viewSource struct {
	views <-chan core.View
	out   chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits every view of a session,
// as delivered by core.Service.Watch. core.View implements lifecycle.Event.
func NewSource(views <-chan core.View) lifecycle.Source {
	return &viewSource{
		views: views,
		out:   make(chan lifecycle.Event),
	}
}

func (s *viewSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *viewSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case v, ok := <-s.views:
				if !ok {
					return nil
				}
				select {
				case s.out <- v:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}

var _ lifecycle.Event = core.View{}
