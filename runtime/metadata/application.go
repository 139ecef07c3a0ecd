package metadata

import (
	"fmt"
	"net/http"
	"strings"
)

// Group identifies one declaration group of an application.
type Group string

const (
	GroupModels        Group = "models"
	GroupInputs        Group = "inputs"
	GroupQueries       Group = "queries"
	GroupMutations     Group = "mutations"
	GroupSubscriptions Group = "subscriptions"
	GroupActions       Group = "actions"
)

// RootGroups are the groups whose members become schema root fields
var RootGroups = []Group{GroupQueries, GroupMutations, GroupSubscriptions}

// Application is the root artifact of a compile pass.
type Application struct {
	Name          string          `json:"name" yaml:"name"`
	Description   string          `json:"description,omitempty" yaml:"description,omitempty"`
	Models        []*TypeMetadata `json:"models,omitempty" yaml:"models,omitempty"`
	Inputs        []*TypeMetadata `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Queries       []*TypeMetadata `json:"queries,omitempty" yaml:"queries,omitempty"`
	Mutations     []*TypeMetadata `json:"mutations,omitempty" yaml:"mutations,omitempty"`
	Subscriptions []*TypeMetadata `json:"subscriptions,omitempty" yaml:"subscriptions,omitempty"`
	Actions       []*Action       `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Action is a REST-style declaration decomposed into named slots.
type Action struct {
	Name        string        `json:"name" yaml:"name"`     // e.g. "GET /posts/:id"
	Method      string        `json:"method" yaml:"method"` // Upper-case HTTP verb
	Path        string        `json:"path" yaml:"path"`     // Route pattern with :param segments
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Return      *TypeMetadata `json:"return,omitempty" yaml:"return,omitempty"`
	Params      *TypeMetadata `json:"params,omitempty" yaml:"params,omitempty"`
	Query       *TypeMetadata `json:"query,omitempty" yaml:"query,omitempty"`
	Headers     *TypeMetadata `json:"headers,omitempty" yaml:"headers,omitempty"`
	Cookies     *TypeMetadata `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	Body        *TypeMetadata `json:"body,omitempty" yaml:"body,omitempty"`
}

// ActionSlots lists the slot names an action declaration may use
var ActionSlots = []string{"return", "params", "query", "headers", "cookies", "body"}

// Slot returns the metadata for a slot by name
func (a *Action) Slot(name string) *TypeMetadata {
	switch name {
	case "return":
		return a.Return
	case "params":
		return a.Params
	case "query":
		return a.Query
	case "headers":
		return a.Headers
	case "cookies":
		return a.Cookies
	case "body":
		return a.Body
	default:
		return nil
	}
}

// SetSlot stores metadata under a slot name
func (a *Action) SetSlot(name string, md *TypeMetadata) error {
	switch name {
	case "return":
		a.Return = md
	case "params":
		a.Params = md
	case "query":
		a.Query = md
	case "headers":
		a.Headers = md
	case "cookies":
		a.Cookies = md
	case "body":
		a.Body = md
	default:
		return fmt.Errorf("unknown action slot: %q", name)
	}
	return nil
}

var httpMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// ParseActionName splits "GET /posts/:id" into its method and path
func ParseActionName(name string) (method, path string, err error) {
	fields := strings.Fields(name)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("action name %q must be \"<METHOD> <path>\"", name)
	}
	method = strings.ToUpper(fields[0])
	if !httpMethods[method] {
		return "", "", fmt.Errorf("action name %q uses unknown method %q", name, fields[0])
	}
	path = fields[1]
	if !strings.HasPrefix(path, "/") {
		return "", "", fmt.Errorf("action path %q must start with '/'", path)
	}
	return method, path, nil
}

// PathParams returns the names of :param segments in the action path
func (a *Action) PathParams() []string {
	var params []string
	for _, segment := range strings.Split(a.Path, "/") {
		if strings.HasPrefix(segment, ":") && len(segment) > 1 {
			params = append(params, segment[1:])
		}
	}
	return params
}

// Group returns the members of a declaration group
func (a *Application) Group(g Group) []*TypeMetadata {
	switch g {
	case GroupModels:
		return a.Models
	case GroupInputs:
		return a.Inputs
	case GroupQueries:
		return a.Queries
	case GroupMutations:
		return a.Mutations
	case GroupSubscriptions:
		return a.Subscriptions
	default:
		return nil
	}
}

// Append adds members to a declaration group
func (a *Application) Append(g Group, members ...*TypeMetadata) {
	switch g {
	case GroupModels:
		a.Models = append(a.Models, members...)
	case GroupInputs:
		a.Inputs = append(a.Inputs, members...)
	case GroupQueries:
		a.Queries = append(a.Queries, members...)
	case GroupMutations:
		a.Mutations = append(a.Mutations, members...)
	case GroupSubscriptions:
		a.Subscriptions = append(a.Subscriptions, members...)
	}
}

// Model returns the model with the given type name
func (a *Application) Model(name string) *TypeMetadata {
	return findNamed(a.Models, name)
}

// Input returns the input with the given type name
func (a *Application) Input(name string) *TypeMetadata {
	return findNamed(a.Inputs, name)
}

// Named returns the model or input with the given type name, models first
func (a *Application) Named(name string) *TypeMetadata {
	if m := a.Model(name); m != nil {
		return m
	}
	return a.Input(name)
}

// Root returns the root declaration of a group by property name
func (a *Application) Root(g Group, name string) *TypeMetadata {
	for _, m := range a.Group(g) {
		if m.PropertyName == name {
			return m
		}
	}
	return nil
}

// Action returns the action with the given name
func (a *Application) Action(name string) *Action {
	for _, act := range a.Actions {
		if act.Name == name {
			return act
		}
	}
	return nil
}

func findNamed(list []*TypeMetadata, name string) *TypeMetadata {
	for _, m := range list {
		if m.TypeName == name {
			return m
		}
	}
	return nil
}

// Clone returns a deep copy of the application
func (a *Application) Clone() *Application {
	c := &Application{
		Name:          a.Name,
		Description:   a.Description,
		Models:        cloneList(a.Models),
		Inputs:        cloneList(a.Inputs),
		Queries:       cloneList(a.Queries),
		Mutations:     cloneList(a.Mutations),
		Subscriptions: cloneList(a.Subscriptions),
	}
	for _, act := range a.Actions {
		ac := *act
		ac.Return = act.Return.Clone()
		ac.Params = act.Params.Clone()
		ac.Query = act.Query.Clone()
		ac.Headers = act.Headers.Clone()
		ac.Cookies = act.Cookies.Clone()
		ac.Body = act.Body.Clone()
		c.Actions = append(c.Actions, &ac)
	}
	return c
}
