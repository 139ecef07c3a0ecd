// Package hooks runs callbacks after entity writes.
package hooks

import (
	"context"
	"fmt"
	"sync"
)

// HookType identifies when a hook runs
type HookType int

const (
	AfterInsert HookType = iota
	AfterUpdate
	AfterRemove
)

// String returns the string representation of the hook type
func (t HookType) String() string {
	switch t {
	case AfterInsert:
		return "after_insert"
	case AfterUpdate:
		return "after_update"
	case AfterRemove:
		return "after_remove"
	default:
		return "unknown"
	}
}

// HookFunc receives the entity name and the written record
type HookFunc func(ctx context.Context, entity string, record map[string]any) error

// Hook is a registered lifecycle hook
type Hook struct {
	Type   HookType
	Entity string // empty matches every entity
	Fn     HookFunc
}

// Executor holds hooks and runs them in registration order
type Executor struct {
	hooks map[HookType][]*Hook
	mu    sync.RWMutex
}

// NewExecutor creates an executor with no hooks
func NewExecutor() *Executor {
	return &Executor{hooks: make(map[HookType][]*Hook)}
}

// Register adds a hook
func (e *Executor) Register(hookType HookType, hook *Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hook.Type = hookType
	e.hooks[hookType] = append(e.hooks[hookType], hook)
}

// HasHooks returns true if any hook of the given type is registered
func (e *Executor) HasHooks(hookType HookType) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.hooks[hookType]) > 0
}

// Execute runs every hook of hookType matching entity. The first failing
// hook stops the chain.
func (e *Executor) Execute(ctx context.Context, hookType HookType, entity string, record map[string]any) error {
	e.mu.RLock()
	hooks := append([]*Hook(nil), e.hooks[hookType]...)
	e.mu.RUnlock()

	for _, hook := range hooks {
		if hook.Entity != "" && hook.Entity != entity {
			continue
		}
		if err := hook.Fn(ctx, entity, record); err != nil {
			return fmt.Errorf("hook %s failed: %w", hookType, err)
		}
	}
	return nil
}
