package resolver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

var (
	// ErrRegistryFrozen is returned by Register after Freeze
	ErrRegistryFrozen = errors.New("resolver registry is frozen")
	// ErrInvalidEntry is returned for malformed entries
	ErrInvalidEntry = errors.New("invalid resolver entry")
)

// Registry holds resolver entries in registration order. Lookups scan that
// order and the first match wins.
type Registry struct {
	entries []Entry
	frozen  bool
	mu      sync.RWMutex
}

// New creates a registry with the given entries. It panics on an invalid
// entry, like regexp.MustCompile; use Register to handle the error.
func New(entries ...Entry) *Registry {
	r := &Registry{}
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

// Register appends entries
func (r *Registry) Register(entries ...Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	for _, e := range entries {
		if e == nil {
			return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
		}
		if err := e.validate(); err != nil {
			return err
		}
	}
	r.entries = append(r.entries, entries...)
	return nil
}

// Freeze makes the registry read-only
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze was called
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Entries returns a copy of the entries in registration order
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// FindItem returns the first item resolver registered for a root declaration
func (r *Registry) FindItem(group metadata.Group, name string) *DeclarationItemResolver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if item, ok := e.(*DeclarationItemResolver); ok && item.Group == group && item.Name == name {
			return item
		}
	}
	return nil
}

// FindBag returns the first bag member registered for a root declaration.
// Exactly one of the returned functions is non-nil when found is true.
func (r *Registry) FindBag(group metadata.Group, name string) (resolve ResolveFunc, subscribe SubscribeFunc, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		bag, ok := e.(*DeclarationResolver)
		if !ok {
			continue
		}
		switch group {
		case metadata.GroupQueries:
			if fn, ok := bag.Queries[name]; ok && fn != nil {
				return fn, nil, true
			}
		case metadata.GroupMutations:
			if fn, ok := bag.Mutations[name]; ok && fn != nil {
				return fn, nil, true
			}
		case metadata.GroupActions:
			if fn, ok := bag.Actions[name]; ok && fn != nil {
				return fn, nil, true
			}
		case metadata.GroupSubscriptions:
			if fn, ok := bag.Subscriptions[name]; ok && fn != nil {
				return nil, fn, true
			}
		}
	}
	return nil, nil, false
}

// FindModelField returns the first direct field resolver for model.field
func (r *Registry) FindModelField(model, field string) FieldFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if m, ok := e.(*ModelResolver); ok && m.Model == model {
			if fn, ok := m.Fields[field]; ok && fn != nil {
				return fn
			}
		}
	}
	return nil
}

// FindModelBatch returns the first batched field resolver for model.field
func (r *Registry) FindModelBatch(model, field string) BatchFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if m, ok := e.(*ModelResolver); ok && m.Model == model {
			if fn, ok := m.Batch[field]; ok && fn != nil {
				return fn
			}
		}
	}
	return nil
}

// Contexts returns every context resolver in registration order
func (r *Registry) Contexts() []*ContextResolver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ContextResolver
	for _, e := range r.entries {
		if c, ok := e.(*ContextResolver); ok {
			out = append(out, c)
		}
	}
	return out
}

// HasRoot reports whether any item or bag resolver covers a root declaration
func (r *Registry) HasRoot(group metadata.Group, name string) bool {
	if r.FindItem(group, name) != nil {
		return true
	}
	_, _, found := r.FindBag(group, name)
	return found
}

// HasModelField reports whether a direct or batched resolver covers model.field
func (r *Registry) HasModelField(model, field string) bool {
	return r.FindModelField(model, field) != nil || r.FindModelBatch(model, field) != nil
}
