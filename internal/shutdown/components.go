package shutdown

import (
	"context"
	"io"
)

// Shutdowner is the interface for servers that drain in-flight work before
// stopping.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ServerComponent wraps a drainable server for graceful shutdown.
type ServerComponent struct {
	name   string
	server Shutdowner
}

// NewServerComponent creates a new server shutdown component.
func NewServerComponent(name string, server Shutdowner) *ServerComponent {
	return &ServerComponent{
		name:   name,
		server: server,
	}
}

// Name returns the component name.
func (c *ServerComponent) Name() string {
	return c.name
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests to complete.
func (c *ServerComponent) Shutdown(ctx context.Context) error {
	return c.server.Shutdown(ctx)
}

// CloserComponent wraps an io.Closer for graceful shutdown.
type CloserComponent struct {
	name   string
	closer io.Closer
}

// NewCloserComponent creates a new closer shutdown component.
func NewCloserComponent(name string, closer io.Closer) *CloserComponent {
	return &CloserComponent{
		name:   name,
		closer: closer,
	}
}

// Name returns the component name.
func (c *CloserComponent) Name() string {
	return c.name
}

// Shutdown closes the underlying resource.
func (c *CloserComponent) Shutdown(ctx context.Context) error {
	return c.closer.Close()
}

// FuncComponent wraps a shutdown function as a component.
type FuncComponent struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncComponent creates a new function-based shutdown component.
func NewFuncComponent(name string, fn func(ctx context.Context) error) *FuncComponent {
	return &FuncComponent{
		name: name,
		fn:   fn,
	}
}

// Name returns the component name.
func (c *FuncComponent) Name() string {
	return c.name
}

// Shutdown calls the wrapped function.
func (c *FuncComponent) Shutdown(ctx context.Context) error {
	return c.fn(ctx)
}

// WorkerShutdowner is the interface for background loops that can be stopped.
type WorkerShutdowner interface {
	Stop()
}

// WorkerComponent wraps a background worker for graceful shutdown.
type WorkerComponent struct {
	name   string
	worker WorkerShutdowner
}

// NewWorkerComponent creates a new worker shutdown component.
func NewWorkerComponent(name string, worker WorkerShutdowner) *WorkerComponent {
	return &WorkerComponent{
		name:   name,
		worker: worker,
	}
}

// Name returns the component name.
func (c *WorkerComponent) Name() string {
	return c.name
}

// Shutdown stops the worker and waits for its loops to drain.
func (c *WorkerComponent) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.worker.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
