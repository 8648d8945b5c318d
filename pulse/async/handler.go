package async

import (
	"context"
	"sync"

	"github.com/teranos/curio/errors"
)

// JobHandler defines the interface for executing a specific job type.
// Handlers decode their own payload types from job.Payload, so the queue
// infrastructure stays decoupled from listing semantics.
//
// Context cancellation: handlers MUST check ctx.Done() periodically and
// exit cleanly with checkpointed progress when cancelled.
type JobHandler interface {
	Execute(ctx context.Context, job *Job) error

	// Name returns the handler name (e.g. "ingest.batch"), used for
	// registration and job routing.
	Name() string
}

// HandlerRegistry manages job handlers by name.
// Thread-safe for concurrent handler registration and lookup.
type HandlerRegistry struct {
	handlers map[string]JobHandler
	mu       sync.RWMutex
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]JobHandler),
	}
}

// Register adds a handler using its name.
// Panics if a handler is already registered with that name.
func (r *HandlerRegistry) Register(handler JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handlerName := handler.Name()
	if _, exists := r.handlers[handlerName]; exists {
		panic("handler already registered for name: " + handlerName)
	}
	r.handlers[handlerName] = handler
}

// Get retrieves the handler for a handler name.
// Returns nil if no handler is registered.
func (r *HandlerRegistry) Get(handlerName string) JobHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[handlerName]
}

// Has checks if a handler is registered for a name.
func (r *HandlerRegistry) Has(handlerName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[handlerName]
	return exists
}

// Names returns all registered handler names.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// JobExecutor runs one job to completion or error.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// RegistryExecutor adapts a HandlerRegistry to the JobExecutor interface.
type RegistryExecutor struct {
	registry *HandlerRegistry
}

// NewRegistryExecutor creates an executor backed by a handler registry.
func NewRegistryExecutor(registry *HandlerRegistry) *RegistryExecutor {
	return &RegistryExecutor{registry: registry}
}

// Execute implements JobExecutor by dispatching to registered handlers.
func (e *RegistryExecutor) Execute(ctx context.Context, job *Job) error {
	if job.HandlerName == "" {
		return errors.New("job missing handler_name")
	}

	handler := e.registry.Get(job.HandlerName)
	if handler == nil {
		return errors.Newf("no handler registered for handler name: %s", job.HandlerName)
	}
	return handler.Execute(ctx, job)
}
