package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds every entity of an application
type Registry struct {
	entities map[string]*Entity
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Register adds an entity. Names must be unique.
func (r *Registry) Register(e *Entity) error {
	if e == nil || e.Name == "" {
		return fmt.Errorf("entity must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[e.Name]; exists {
		return fmt.Errorf("entity %s is already registered", e.Name)
	}
	r.entities[e.Name] = e
	return nil
}

// Get retrieves an entity by name
func (r *Registry) Get(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[name]
	return e, ok
}

// List returns every entity name, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every entity, sorted by name
func (r *Registry) All() []*Entity {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entity, 0, len(names))
	for _, n := range names {
		out = append(out, r.entities[n])
	}
	return out
}
