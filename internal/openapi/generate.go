// Package openapi describes the REST actions of an application as an
// OpenAPI 3 document.
package openapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// Version is the OpenAPI version of generated documents
const Version = "3.0.3"

const componentPrefix = "#/components/schemas/"

// Option configures a generator
type Option func(*generator)

// WithVersion sets the API version reported in the document info
func WithVersion(v string) Option {
	return func(g *generator) { g.version = v }
}

// WithServer adds a server URL
func WithServer(url string) Option {
	return func(g *generator) { g.servers = append(g.servers, url) }
}

type generator struct {
	app     *metadata.Application
	doc     *openapi3.T
	version string
	servers []string
}

// Generate builds the document: one operation per action, with path,
// query, header and cookie parameters from the matching slots, a JSON
// request body from the body slot and a 200 response from the return slot.
// Named models and inputs become component schemas.
func Generate(app *metadata.Application, opts ...Option) (*openapi3.T, error) {
	if app == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}

	g := &generator{app: app, version: "1.0.0"}
	for _, opt := range opts {
		opt(g)
	}
	g.doc = &openapi3.T{
		OpenAPI: Version,
		Info: &openapi3.Info{
			Title:       app.Name,
			Description: app.Description,
			Version:     g.version,
		},
		Paths:      openapi3.Paths{},
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}
	for _, url := range g.servers {
		g.doc.AddServer(&openapi3.Server{URL: url})
	}

	for _, a := range app.Actions {
		op, err := g.operation(a)
		if err != nil {
			return nil, err
		}
		g.doc.AddOperation(Path(a.Path), a.Method, op)
	}
	return g.doc, nil
}

// Path converts ":id" route segments to "{id}"
func Path(route string) string {
	segments := strings.Split(route, "/")
	for i, s := range segments {
		if strings.HasPrefix(s, ":") && len(s) > 1 {
			segments[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// OperationID derives an identifier such as "getPostsById" from an action
func OperationID(a *metadata.Action) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(a.Method))
	for _, s := range strings.Split(a.Path, "/") {
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, ":") {
			b.WriteString("By")
			s = s[1:]
		}
		for _, word := range strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == '.' }) {
			b.WriteString(strings.ToUpper(word[:1]) + word[1:])
		}
	}
	return b.String()
}

func (g *generator) operation(a *metadata.Action) (*openapi3.Operation, error) {
	op := openapi3.NewOperation()
	op.OperationID = OperationID(a)
	op.Summary = a.Name
	op.Description = a.Description

	for _, name := range a.PathParams() {
		schema := openapi3.NewStringSchema()
		if a.Params != nil {
			if p := a.Params.Property(name); p != nil {
				schema = g.inline(p)
			}
		}
		op.AddParameter(openapi3.NewPathParameter(name).WithSchema(schema))
	}

	slots := []struct {
		slot *metadata.TypeMetadata
		make func(string) *openapi3.Parameter
	}{
		{a.Query, openapi3.NewQueryParameter},
		{a.Headers, openapi3.NewHeaderParameter},
		{a.Cookies, openapi3.NewCookieParameter},
	}
	for _, s := range slots {
		if s.slot == nil {
			continue
		}
		if s.slot.Kind != metadata.KindObject {
			return nil, fmt.Errorf("action %s: parameter slots must be objects, got %s", a.Name, s.slot.Kind)
		}
		for _, p := range s.slot.Properties {
			param := s.make(p.PropertyName).WithRequired(!p.Optional()).WithSchema(g.inline(p))
			param.Description = p.Description
			op.AddParameter(param)
		}
	}

	if a.Body != nil {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(!a.Body.Optional()).
				WithJSONSchemaRef(g.schema(a.Body)),
		}
	}

	response := openapi3.NewResponse().WithDescription("OK")
	if a.Return != nil {
		response = response.WithJSONSchemaRef(g.schema(a.Return))
	}
	op.AddResponse(200, response)
	return op, nil
}

// inline returns the schema value of md, following component references
func (g *generator) inline(md *metadata.TypeMetadata) *openapi3.Schema {
	ref := g.schema(md)
	if ref.Value != nil {
		return ref.Value
	}
	return openapi3.NewStringSchema()
}

// schema returns md as a schema, referencing a component for named objects
func (g *generator) schema(md *metadata.TypeMetadata) *openapi3.SchemaRef {
	var ref *openapi3.SchemaRef
	if name := g.component(md); name != "" {
		ref = openapi3.NewSchemaRef(componentPrefix+name, g.doc.Components.Schemas[name].Value)
		if md.Nullable && !md.Array {
			ref = openapi3.NewSchemaRef("", &openapi3.Schema{
				Nullable: true,
				AllOf:    openapi3.SchemaRefs{ref},
			})
		}
	} else {
		ref = openapi3.NewSchemaRef("", g.body(md))
	}

	if !md.Array {
		return ref
	}
	arr := &openapi3.Schema{Type: openapi3.TypeArray, Items: ref, Nullable: md.Nullable}
	return openapi3.NewSchemaRef("", arr)
}

// component registers the named model or input md refers to and returns its
// name, or "" when md is anonymous.
func (g *generator) component(md *metadata.TypeMetadata) string {
	if md.TypeName == "" || (md.Kind != metadata.KindObject && md.Kind != metadata.KindReference) {
		return ""
	}
	if _, ok := g.doc.Components.Schemas[md.TypeName]; ok {
		return md.TypeName
	}
	named := g.app.Named(md.TypeName)
	if named == nil {
		return ""
	}

	// registered before rendering so self references resolve to it
	value := &openapi3.Schema{}
	g.doc.Components.Schemas[md.TypeName] = openapi3.NewSchemaRef("", value)
	*value = *g.body(named)
	return md.TypeName
}

// body renders md without its array wrapper
func (g *generator) body(md *metadata.TypeMetadata) *openapi3.Schema {
	var s *openapi3.Schema
	switch md.Kind {
	case metadata.KindNumber:
		s = openapi3.NewFloat64Schema()
	case metadata.KindString:
		s = openapi3.NewStringSchema()
	case metadata.KindBoolean:
		s = openapi3.NewBoolSchema()
	case metadata.KindBigInt:
		s = openapi3.NewStringSchema().WithFormat("bigint")
	case metadata.KindEnum:
		values := make([]interface{}, 0, len(md.Properties))
		for _, p := range md.Properties {
			values = append(values, p.PropertyName)
		}
		s = openapi3.NewStringSchema().WithEnum(values...)
	case metadata.KindUnion:
		s = &openapi3.Schema{}
		for _, member := range md.Properties {
			s.OneOf = append(s.OneOf, g.schema(member))
		}
	case metadata.KindObject:
		s = g.object(md)
	default:
		// references to undeclared names and reserved kinds
		s = &openapi3.Schema{}
	}
	s.Nullable = md.Nullable && !md.Array
	if md.Description != "" {
		s.Description = md.Description
	}
	s.Deprecated = md.Deprecated != ""
	return s
}

func (g *generator) object(md *metadata.TypeMetadata) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for _, p := range md.Properties {
		s.Properties[p.PropertyName] = g.schema(p)
		if !p.Optional() {
			s.Required = append(s.Required, p.PropertyName)
		}
	}
	return s
}

// Encode renders a document as JSON or YAML
func Encode(doc *openapi3.T, format metadata.Format) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if format != metadata.FormatYAML {
		return data, nil
	}

	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}
	return yaml.Marshal(tree)
}
