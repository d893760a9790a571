package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Handler executes one unit of user job logic with the arguments carried
// by the job's descriptor.
type Handler interface {
	Perform(ctx context.Context, args []json.RawMessage) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, args []json.RawMessage) error

// Perform implements Handler.
func (f HandlerFunc) Perform(ctx context.Context, args []json.RawMessage) error {
	return f(ctx, args)
}

// Factory builds a fresh Handler instance for a single execution.
// Instances are never reused across jobs.
type Factory func() Handler

// Registry maps handler names to factories. Handlers are registered once
// at process startup and resolved by name at dispatch time.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given handler name.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return errors.New("handler name cannot be empty")
	}
	if factory == nil {
		return errors.New("handler factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("handler %q is already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// Lookup resolves a handler name to its factory. A miss is reported as an
// UnknownHandlerError carrying the attempted name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, &UnknownHandlerError{Name: name}
	}

	return factory, nil
}

// Names returns the registered handler names, for startup logging.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
