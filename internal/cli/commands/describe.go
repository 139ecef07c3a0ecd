package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/typegraph/internal/cli/ui"
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

func newDescribeCommand(g *globals) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "describe <metadata-file> [type]",
		Short: "Show the declarations of an application",
		Long: `Describe lists every model, input, root field and action of an application.
Given a type name it shows the properties of that model or input and the
types it references or is referenced by.`,
		Example: `  # Summary of every declaration
  typegraph describe app.yaml

  # Properties and dependencies of one model
  typegraph describe app.yaml Post

  # Machine readable
  typegraph describe app.yaml Post --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unsupported format %q, use table or json", format)
			}
			app, err := g.loadMetadata(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if format == "json" {
					return writeJSON(out, summarize(app))
				}
				describeApp(out, app, g.noColor)
				return nil
			}

			md := app.Named(args[1])
			if md == nil {
				var names []string
				for _, grp := range []metadata.Group{metadata.GroupModels, metadata.GroupInputs} {
					for _, m := range app.Group(grp) {
						names = append(names, m.TypeName)
					}
				}
				ui.Write(cmd.ErrOrStderr(), ui.NotFound("Type", args[1], names, args[0], g.noColor))
				return fmt.Errorf("type %s not found", args[1])
			}

			graph := metadata.BuildDependencyGraph(app)
			if format == "json" {
				return writeJSON(out, describeJSON(md, graph))
			}
			describeType(out, md, graph, g.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

type declaration struct {
	Group string `json:"group"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Type  string `json:"type,omitempty"`
}

func summarize(app *metadata.Application) []declaration {
	var out []declaration
	for _, grp := range []metadata.Group{
		metadata.GroupModels, metadata.GroupInputs,
		metadata.GroupQueries, metadata.GroupMutations, metadata.GroupSubscriptions,
	} {
		for _, m := range app.Group(grp) {
			name := m.PropertyName
			if grp == metadata.GroupModels || grp == metadata.GroupInputs {
				name = m.TypeName
			}
			out = append(out, declaration{Group: string(grp), Name: name, Kind: m.Kind.String(), Type: typeString(m)})
		}
	}
	for _, a := range app.Actions {
		out = append(out, declaration{
			Group: string(metadata.GroupActions),
			Name:  a.Name,
			Kind:  "action",
			Type:  typeString(a.Return),
		})
	}
	return out
}

func describeApp(w io.Writer, app *metadata.Application, noColor bool) {
	ui.Header(w, app.Name, noColor)
	if app.Description != "" {
		fmt.Fprintln(w, app.Description)
	}

	kv := ui.NewKeyValue(w, noColor)
	kv.Add("Models", strconv.Itoa(len(app.Models)))
	kv.Add("Inputs", strconv.Itoa(len(app.Inputs)))
	kv.Add("Queries", strconv.Itoa(len(app.Queries)))
	kv.Add("Mutations", strconv.Itoa(len(app.Mutations)))
	kv.Add("Subscriptions", strconv.Itoa(len(app.Subscriptions)))
	kv.Add("Actions", strconv.Itoa(len(app.Actions)))
	kv.Render()
	fmt.Fprintln(w)

	table := ui.NewTable(w, noColor, "GROUP", "NAME", "KIND", "TYPE")
	for _, d := range summarize(app) {
		table.AddRow(d.Group, d.Name, d.Kind, d.Type)
	}
	table.Render()

	if cycles := metadata.BuildDependencyGraph(app).Cycles(); len(cycles) > 0 {
		fmt.Fprintln(w)
		for _, c := range cycles {
			ui.Write(w, ui.Warning("reference cycle: "+strings.Join(c, " -> "), noColor))
		}
	}
}

type propertyJSON struct {
	Name  string   `json:"name"`
	Kind  string   `json:"kind"`
	Type  string   `json:"type,omitempty"`
	Flags []string `json:"flags,omitempty"`
}

type typeJSON struct {
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	Properties   []propertyJSON `json:"properties"`
	References   []string       `json:"references"`
	ReferencedBy []string       `json:"referencedBy"`
}

func describeJSON(md *metadata.TypeMetadata, graph *metadata.DependencyGraph) typeJSON {
	out := typeJSON{
		Name:         md.TypeName,
		Kind:         md.Kind.String(),
		Properties:   []propertyJSON{},
		References:   []string{},
		ReferencedBy: []string{},
	}
	for _, p := range md.Properties {
		out.Properties = append(out.Properties, propertyJSON{
			Name:  p.PropertyName,
			Kind:  p.Kind.String(),
			Type:  typeString(p),
			Flags: flags(p),
		})
	}
	out.References, out.ReferencedBy = edges(md.TypeName, graph)
	return out
}

func describeType(w io.Writer, md *metadata.TypeMetadata, graph *metadata.DependencyGraph, noColor bool) {
	ui.Header(w, md.TypeName+" ("+md.Kind.String()+")", noColor)
	if md.Description != "" {
		fmt.Fprintln(w, md.Description)
	}

	table := ui.NewTable(w, noColor, "PROPERTY", "KIND", "TYPE", "FLAGS")
	for _, p := range md.Properties {
		table.AddRow(p.PropertyName, p.Kind.String(), typeString(p), strings.Join(flags(p), ","))
	}
	table.Render()

	refs, by := edges(md.TypeName, graph)
	fmt.Fprintln(w)
	kv := ui.NewKeyValue(w, noColor)
	kv.Add("References", joinOrNone(refs))
	kv.Add("Referenced by", joinOrNone(by))
	kv.Render()
}

// edges returns the distinct types name refers to and the types referring
// to it, sorted
func edges(name string, graph *metadata.DependencyGraph) (refs, by []string) {
	seenRef := map[string]bool{}
	seenBy := map[string]bool{}
	refs, by = []string{}, []string{}
	for _, e := range graph.Edges {
		if e.From == name && !seenRef[e.To] {
			seenRef[e.To] = true
			refs = append(refs, e.To)
		}
		if e.To == name && !seenBy[e.From] {
			seenBy[e.From] = true
			by = append(by, e.From)
		}
	}
	sort.Strings(refs)
	sort.Strings(by)
	return refs, by
}

func typeString(md *metadata.TypeMetadata) string {
	if md == nil {
		return ""
	}
	s := md.TypeName
	if s == "" {
		s = md.Kind.String()
	}
	if md.Kind == metadata.KindEnum && md.TypeName == "" {
		s = strings.Join(md.PropertyNames(), "|")
	}
	if md.Array {
		s = "[" + s + "]"
	}
	return s
}

func flags(md *metadata.TypeMetadata) []string {
	var out []string
	if md.Nullable {
		out = append(out, "nullable")
	}
	if md.CanBeUndefined {
		out = append(out, "optional")
	}
	if md.Deprecated != "" {
		out = append(out, "deprecated")
	}
	return out
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
