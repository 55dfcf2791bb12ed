package nodecodec

import (
	"reflect"
	"sync"

	"github.com/vk/tracegraph/internal/node"
)

// Registry resolves persisted module type names to live types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type // Key: node.QualifiedTypeName of the type.
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]reflect.Type)}
}

// Register records the dynamic type of each sample, typically a nil pointer
// such as (*nn.Linear)(nil).
func (r *Registry) Register(samples ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		t := reflect.TypeOf(s)
		if t == nil {
			continue
		}
		r.types[node.QualifiedTypeName(t)] = t
	}
}

// Lookup returns the type registered under a qualified name.
func (r *Registry) Lookup(qualified string) (reflect.Type, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[qualified]
	return t, ok
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}
