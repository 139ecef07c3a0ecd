package declare

import (
	"sort"
	"strconv"
	"strings"

	"github.com/conduit-lang/typegraph/runtime/metadata"
)

// Declaration is one named member of a declaration group.
type Declaration struct {
	Name        string
	Type        Type
	Description string
}

// Application collects every declaration group of an API.
type Application struct {
	Name          string
	Description   string
	Models        []*Declaration
	Inputs        []*Declaration
	Queries       []*Declaration
	Mutations     []*Declaration
	Subscriptions []*Declaration
	Actions       []*Declaration
}

// App starts a new application declaration
func App(name string) *Application {
	return &Application{Name: name}
}

// Describe sets the application description
func (a *Application) Describe(description string) *Application {
	a.Description = description
	return a
}

// Model declares a named model
func (a *Application) Model(name string, t Type, description ...string) *Application {
	a.Models = append(a.Models, newDeclaration(name, t, description))
	return a
}

// Input declares a named input
func (a *Application) Input(name string, t Type, description ...string) *Application {
	a.Inputs = append(a.Inputs, newDeclaration(name, t, description))
	return a
}

// Query declares a root query. Use Func to give it arguments.
func (a *Application) Query(name string, t Type, description ...string) *Application {
	a.Queries = append(a.Queries, newDeclaration(name, t, description))
	return a
}

// Mutation declares a root mutation
func (a *Application) Mutation(name string, t Type, description ...string) *Application {
	a.Mutations = append(a.Mutations, newDeclaration(name, t, description))
	return a
}

// Subscription declares a root subscription
func (a *Application) Subscription(name string, t Type, description ...string) *Application {
	a.Subscriptions = append(a.Subscriptions, newDeclaration(name, t, description))
	return a
}

// Action declares a REST-style action such as "GET /posts/:id". t must be an
// object whose fields are action slots (return, params, query, headers,
// cookies, body).
func (a *Application) Action(name string, t Type, description ...string) *Application {
	a.Actions = append(a.Actions, newDeclaration(name, t, description))
	return a
}

func newDeclaration(name string, t Type, description []string) *Declaration {
	return &Declaration{Name: name, Type: t, Description: strings.Join(description, "\n")}
}

// Group returns the declarations of a group
func (a *Application) Group(g metadata.Group) []*Declaration {
	switch g {
	case metadata.GroupModels:
		return a.Models
	case metadata.GroupInputs:
		return a.Inputs
	case metadata.GroupQueries:
		return a.Queries
	case metadata.GroupMutations:
		return a.Mutations
	case metadata.GroupSubscriptions:
		return a.Subscriptions
	case metadata.GroupActions:
		return a.Actions
	default:
		return nil
	}
}

// NamedTypes returns the set of names treated as referenceable
func (a *Application) NamedTypes() map[string]metadata.Group {
	names := make(map[string]metadata.Group, len(a.Models)+len(a.Inputs))
	for _, d := range a.Inputs {
		names[d.Name] = metadata.GroupInputs
	}
	for _, d := range a.Models {
		names[d.Name] = metadata.GroupModels
	}
	return names
}

// Fingerprint renders every declaration in a stable text form. Two
// applications with the same fingerprint compile to the same metadata.
func (a *Application) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString("app " + strconv.Quote(a.Name) + " " + strconv.Quote(a.Description) + "\n")

	groups := []metadata.Group{
		metadata.GroupModels,
		metadata.GroupInputs,
		metadata.GroupQueries,
		metadata.GroupMutations,
		metadata.GroupSubscriptions,
		metadata.GroupActions,
	}
	for _, g := range groups {
		for _, d := range a.Group(g) {
			sb.WriteString(string(g))
			sb.WriteString(" ")
			sb.WriteString(strconv.Quote(d.Name))
			sb.WriteString(" ")
			sb.WriteString(typeString(d.Type))
			if d.Description != "" {
				sb.WriteString(" @description(" + strconv.Quote(d.Description) + ")")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Names returns the sorted declaration names of a group
func (a *Application) Names(g metadata.Group) []string {
	decls := a.Group(g)
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
	}
	sort.Strings(names)
	return names
}
