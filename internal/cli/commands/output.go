package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/conduit-lang/pim/internal/cli/ui"
	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/selector"
	"github.com/conduit-lang/pim/pkg/thing"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, table)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeThings renders things as rows of id, label and the selected scalar fields
func writeThings(w io.Writer, opts *options, res *schema.Resource, things []*thing.Thing, sel *selector.Node) error {
	if opts.format == formatJSON {
		rows := make([]thing.Row, 0, len(things))
		for _, t := range things {
			rows = append(rows, t.Row(sel))
		}
		return writeJSON(w, rows)
	}

	lang := res.Graph().Lang()
	fields := selectedFields(res, sel)

	headers := []string{"ID", "Label"}
	for _, f := range fields {
		headers = append(headers, f.Label(lang))
	}
	table := ui.NewTable(w, opts.noColor, headers...)
	for _, t := range things {
		cells := []string{t.ID().String(), t.Label(lang)}
		for _, f := range fields {
			cells = append(cells, formatValue(t.ValueOf(f, "")))
		}
		table.AddRow(cells...)
	}
	table.Render()
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		for _, k := range []string{"name", "token"} {
			if s, ok := v[k].(string); ok {
				return s
			}
		}
		data, _ := json.Marshal(v)
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

// writeThing renders a single thing as key-value pairs
func writeThing(w io.Writer, opts *options, t *thing.Thing, sel *selector.Node) error {
	if opts.format == formatJSON {
		return writeJSON(w, t.Row(sel))
	}

	lang := t.Resource().Graph().Lang()
	ui.Header(w, t.Label(lang), opts.noColor)
	table := ui.NewKeyValueTable(w, opts.noColor)
	table.AddRow("ID", t.ID().String())
	for _, f := range selectedFields(t.Resource(), sel) {
		table.AddRow(f.Label(lang), formatValue(t.ValueOf(f, "")))
	}
	table.Render()
	return nil
}

func selectedFields(res *schema.Resource, sel *selector.Node) []*schema.Field {
	var fields []*schema.Field
	for _, f := range res.Fields() {
		if !f.IsRelation() && sel.Includes(f.Name()) {
			fields = append(fields, f)
		}
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Order() < fields[j].Order() })
	return fields
}

// resourceNotFound wraps a lookup failure with suggestions from the schema
func resourceNotFound(g *schema.Graph, name string, noColor bool) error {
	names := make([]string, 0)
	for _, r := range g.Resources() {
		names = append(names, r.Name())
	}
	return &lookupError{
		err: fmt.Errorf("%w: %s", schema.ErrResourceNotFound, name),
		msg: ui.NotFound("resource", name, ui.Suggest(name, names, 3), "See all resources: pim schema", noColor),
	}
}

func fieldNotFound(res *schema.Resource, name string, noColor bool) error {
	names := make([]string, 0)
	for _, f := range res.Fields() {
		names = append(names, f.Name())
	}
	return &lookupError{
		err: fmt.Errorf("%w: %s on %s", schema.ErrFieldNotFound, name, res.Name()),
		msg: ui.NotFound("field", name, ui.Suggest(name, names, 3), "See fields: pim schema "+res.Name(), noColor),
	}
}

// lookupError carries a formatted message for the terminal and the sentinel for callers
type lookupError struct {
	err error
	msg string
}

func (e *lookupError) Error() string { return strings.TrimRight(e.msg, "\n") }
func (e *lookupError) Unwrap() error { return e.err }
