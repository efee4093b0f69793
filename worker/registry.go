package worker

import (
	"context"
	"sync"

	"github.com/channelport/courier"
	"github.com/channelport/courier/task"
)

// Body is the function that executes one task: the external call plus
// result persistence. The context it receives is never cancelled by
// shutdown; started work runs to completion.
type Body func(ctx context.Context, t *task.Task) error

// Registry maps task kinds to bodies.
type Registry struct {
	mu     sync.RWMutex
	bodies map[task.Kind]Body
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bodies: make(map[task.Kind]Body)}
}

// Register binds a body to a kind, replacing any previous binding.
func (r *Registry) Register(k task.Kind, b Body) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies[k] = b
}

// Get returns the body for a kind.
func (r *Registry) Get(k task.Kind) (Body, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bodies[k]
	if !ok {
		return nil, courier.ErrNoBodyRegistered
	}
	return b, nil
}
