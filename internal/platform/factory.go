package platform

import (
	"context"
	"errors"
	"io"

	"github.com/aretw0/jotter/pkg/core"
)

// App is a session service bundled with the store it was built on.
type App struct {
	*core.Service
	Store core.Store
}

// New builds the store selected by the options and a session service over it.
//
//	app, err := platform.New(ctx, "./notes", platform.WithFormat("yaml"))
func New(ctx context.Context, uri string, opts ...Option) (*App, error) {
	store, err := Init(ctx, uri, opts...)
	if err != nil {
		return nil, err
	}

	o := apply(opts)
	maxTags, _ := o.config["max_tag_values"].(int)
	buffer, _ := o.config["event_buffer"].(int)

	svc := core.NewService(store, core.ServiceConfig{
		Logger:       o.log(),
		MaxTagValues: maxTags,
		EventBuffer:  buffer,
	})
	return &App{Service: svc, Store: store}, nil
}

// Close releases the session subscriptions, then the store.
func (a *App) Close() error {
	err := a.Service.Close()
	if c, ok := a.Store.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}
