// Package compiler turns declarations built with the declare package into
// type metadata.
//
// Named types are expanded the first time they are reached from a root and
// collapse to reference nodes once the nesting threshold of the ReferencePolicy
// is met, or as soon as the same name is already being expanded on the current
// path. Compilation therefore terminates for any graph of models, including
// self-referencing ones.
package compiler

import (
	"fmt"

	"github.com/conduit-lang/typegraph/compiler/errors"
	"github.com/conduit-lang/typegraph/runtime/declare"
	"github.com/conduit-lang/typegraph/runtime/metadata"
	"github.com/conduit-lang/typegraph/runtime/naming"
	"go.uber.org/zap"
)

// Compiler compiles declaration applications into metadata applications.
type Compiler struct {
	policy ReferencePolicy
	naming *naming.Strategy
	logger *zap.Logger
	cache  *Cache
}

// Option configures a Compiler
type Option func(*Compiler)

// WithPolicy sets the reference thresholds
func WithPolicy(p ReferencePolicy) Option {
	return func(c *Compiler) { c.policy = p }
}

// WithNaming sets the naming strategy used for anonymous enums and unions
func WithNaming(s *naming.Strategy) Option {
	return func(c *Compiler) { c.naming = s }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCache enables CompileCached
func WithCache(cache *Cache) Option {
	return func(c *Compiler) { c.cache = cache }
}

// New creates a Compiler
func New(opts ...Option) *Compiler {
	c := &Compiler{
		policy: DefaultPolicy(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.naming = c.naming.WithDefaults()
	return c
}

// Policy returns the reference policy in use
func (c *Compiler) Policy() ReferencePolicy {
	return c.policy
}

// Compile compiles every declaration group of app. On failure the returned
// error is an errors.List holding every problem found, at most one per
// declaration plus the findings of the validation pass.
func (c *Compiler) Compile(app *declare.Application) (*metadata.Application, error) {
	if app == nil {
		return nil, fmt.Errorf("compile: nil application")
	}
	if err := c.policy.Validate(); err != nil {
		return nil, err
	}

	collector := errors.NewCollector()
	out := &metadata.Application{Name: app.Name, Description: app.Description}

	names := app.NamedTypes()
	decls := make(map[string]*declare.Declaration, len(names))
	for _, d := range app.Inputs {
		decls[d.Name] = d
	}
	for _, d := range app.Models {
		decls[d.Name] = d
	}

	for _, g := range []metadata.Group{
		metadata.GroupModels,
		metadata.GroupInputs,
		metadata.GroupQueries,
		metadata.GroupMutations,
		metadata.GroupSubscriptions,
	} {
		for _, d := range app.Group(g) {
			w := &walker{compiler: c, names: names, decls: decls, group: g, decl: d.Name}
			md, err := w.root(d)
			if err != nil {
				collector.Add(err)
				continue
			}
			c.logger.Debug("compiled declaration",
				zap.String("group", string(g)),
				zap.String("name", d.Name),
				zap.Stringer("kind", md.Kind))
			out.Append(g, md)
		}
	}

	for _, d := range app.Actions {
		w := &walker{compiler: c, names: names, decls: decls, group: metadata.GroupActions, decl: d.Name}
		act, err := w.action(d)
		if err != nil {
			collector.Add(err)
			continue
		}
		c.logger.Debug("compiled action", zap.String("name", d.Name))
		out.Actions = append(out.Actions, act)
	}

	if collector.HasErrors() {
		return nil, collector.Err()
	}

	if err := out.Validate(); err != nil {
		for _, ve := range err.(metadata.ValidationErrors) {
			collector.Add(fromValidation(ve))
		}
		return nil, collector.Err()
	}

	c.logger.Debug("compiled application",
		zap.String("name", out.Name),
		zap.Int("models", len(out.Models)),
		zap.Int("inputs", len(out.Inputs)),
		zap.Int("queries", len(out.Queries)),
		zap.Int("mutations", len(out.Mutations)),
		zap.Int("subscriptions", len(out.Subscriptions)),
		zap.Int("actions", len(out.Actions)))

	return out, nil
}

func fromValidation(ve *metadata.ValidationError) *errors.CompileError {
	code := errors.ErrUnsupportedShape
	switch ve.Code {
	case metadata.CodeDuplicateDeclaration, metadata.CodeDuplicateType, metadata.CodeModelInputConflict:
		code = errors.ErrDuplicateDeclaration
	case metadata.CodeUnresolvedReference, metadata.CodeReferenceProperties:
		code = errors.ErrUnresolvedReference
	case metadata.CodeInvalidMemberName:
		code = errors.ErrInvalidEnumMember
	case metadata.CodeMissingActionReturn:
		code = errors.ErrMissingActionReturn
	}
	e := errors.New(code, ve.Message)
	e.Group = ve.Group
	e.Declaration = ve.Path
	return e
}
