package dispatch

import (
	"context"
	"reflect"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/resolver"
)

// RuleFunc checks one value of a named type.
type RuleFunc func(ctx context.Context, value any) error

// Rules holds validation rules keyed by type name.
type Rules struct {
	rules    map[string][]RuleFunc
	validate *validator.Validate
	app      *metadata.Application
	mu       sync.RWMutex
}

// NewRules creates an empty rule set
func NewRules() *Rules {
	return &Rules{
		rules:    make(map[string][]RuleFunc),
		validate: validator.New(),
	}
}

// Register adds a rule for typeName. Rules run in registration order.
func (r *Rules) Register(typeName string, fn RuleFunc) *Rules {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[typeName] = append(r.rules[typeName], fn)
	return r
}

// RegisterTag adds a validator tag rule such as "min=1,max=100" for typeName
func (r *Rules) RegisterTag(typeName, tag string) *Rules {
	return r.Register(typeName, func(ctx context.Context, value any) error {
		return r.validate.VarCtx(ctx, value, tag)
	})
}

// Resolve makes reference nodes walk into the model or input they name in
// app. Without it a reference only gets the rules of its own type name.
func (r *Rules) Resolve(app *metadata.Application) *Rules {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.app = app
	return r
}

// Len returns the number of types with at least one rule
func (r *Rules) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Validate walks value along md and applies the rules of every named node.
// A nil value passes.
func (r *Rules) Validate(ctx context.Context, md *metadata.TypeMetadata, value any) error {
	if r == nil || md == nil {
		return nil
	}
	return r.walker().walk(ctx, md, value, nil)
}

// ValidateArgs checks a flat argument map against a field's Args nodes. A
// single object-shaped node describes the whole map.
func (r *Rules) ValidateArgs(ctx context.Context, args []*metadata.TypeMetadata, values resolver.Args) error {
	if r == nil || len(args) == 0 {
		return nil
	}
	w := r.walker()
	if len(args) == 1 && args[0].Kind == metadata.KindObject && !args[0].Array {
		return w.walk(ctx, args[0], map[string]any(values), nil)
	}
	for _, a := range args {
		if err := w.walk(ctx, a, values[a.PropertyName], []string{a.PropertyName}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rules) walker() *walker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &walker{rules: r, app: r.app, visited: make(map[visit]bool)}
}

// visit identifies a value already walked as a named type
type visit struct {
	typeName string
	ptr      uintptr
}

type walker struct {
	rules   *Rules
	app     *metadata.Application
	visited map[visit]bool
}

func (w *walker) walk(ctx context.Context, md *metadata.TypeMetadata, value any, path []string) error {
	if value == nil {
		return nil
	}

	if md.Array {
		elem := *md
		elem.Array = false
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return w.walk(ctx, &elem, value, path)
		}
		for i := 0; i < rv.Len(); i++ {
			item := rv.Index(i).Interface()
			if err := w.walk(ctx, &elem, item, append(path[:len(path):len(path)], strconv.Itoa(i))); err != nil {
				return err
			}
		}
		return nil
	}

	if md.TypeName != "" {
		w.rules.mu.RLock()
		rules := w.rules.rules[md.TypeName]
		w.rules.mu.RUnlock()
		for _, fn := range rules {
			if err := fn(ctx, value); err != nil {
				return &ValidationError{Path: path, TypeName: md.TypeName, Err: err}
			}
		}
	}

	node := md
	if md.Kind == metadata.KindReference {
		if w.app == nil {
			return nil
		}
		node = w.app.Named(md.TypeName)
		if node == nil {
			return nil
		}
		if ptr, ok := identity(value); ok {
			key := visit{typeName: md.TypeName, ptr: ptr}
			if w.visited[key] {
				return nil
			}
			w.visited[key] = true
		}
	}

	if node.Kind != metadata.KindObject {
		return nil
	}
	for _, p := range node.Properties {
		v, ok := resolver.Property(value, p.PropertyName)
		if !ok {
			continue
		}
		if err := w.walk(ctx, p, v, append(path[:len(path):len(path)], p.PropertyName)); err != nil {
			return err
		}
	}
	return nil
}

// identity returns the address behind maps, slices and pointers
func identity(value any) (uintptr, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Slice:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	}
	return 0, false
}
