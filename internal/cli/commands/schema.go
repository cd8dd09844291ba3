package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/conduit-lang/pim/internal/cli/ui"
	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/spf13/cobra"
)

func newSchemaCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [resource]",
		Short: "Show the resources of the schema, or the fields of one resource",
		Long: `Show the schema loaded from the configured backend.

Without arguments, lists every resource with its label and field count.
With a resource name or id, lists the fields of that resource.

Examples:
  pim schema
  pim schema product
  pim schema product --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			g := a.session.Graph()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return writeResources(out, opts, g)
			}

			res, ok := g.Resource(schema.ParseRef(args[0]))
			if !ok {
				return resourceNotFound(g, args[0], opts.noColor)
			}
			return writeFields(out, opts, res)
		},
	}
}

func writeResources(w io.Writer, opts *options, g *schema.Graph) error {
	if opts.format == formatJSON {
		return writeJSON(w, g.Snapshot())
	}

	lang := g.Lang()
	ui.Header(w, fmt.Sprintf("%s (%d resources)", g.Name(), len(g.Resources())), opts.noColor)
	table := ui.NewTable(w, opts.noColor, "ID", "Name", "Label", "Fields", "Multiple")
	for _, r := range g.Resources() {
		table.AddRow(
			strconv.FormatInt(int64(r.ID()), 10),
			r.Name(),
			r.Label(lang),
			strconv.Itoa(len(r.Fields())),
			yesNo(r.IsMultiple()),
		)
	}
	table.Render()
	return nil
}

func writeFields(w io.Writer, opts *options, res *schema.Resource) error {
	if opts.format == formatJSON {
		defs := make([]schema.FieldDef, 0)
		for _, f := range res.Fields() {
			defs = append(defs, f.Def())
		}
		return writeJSON(w, defs)
	}

	lang := res.Graph().Lang()
	ui.Header(w, fmt.Sprintf("%s (%s)", res.Label(lang), res.Name()), opts.noColor)
	table := ui.NewTable(w, opts.noColor, "ID", "Name", "Label", "Type", "Target", "Flags")
	for _, f := range res.Fields() {
		table.AddRow(
			strconv.FormatInt(int64(f.ID()), 10),
			f.Name(),
			f.Label(lang),
			string(f.Type()),
			relationTarget(f),
			fieldFlags(f),
		)
	}
	table.Render()
	return nil
}

func relationTarget(f *schema.Field) string {
	if !f.IsRelation() {
		return ""
	}
	target, err := f.RelatedResource()
	if err != nil {
		return "?"
	}
	return target.Name() + " (" + string(f.RelType()) + ")"
}

func fieldFlags(f *schema.Field) string {
	var flags []byte
	for _, flag := range []struct {
		set  bool
		code byte
	}{
		{f.IsTranslatable(), 't'},
		{f.IsMultiple(), 'm'},
		{f.IsUnique(), 'u'},
	} {
		if flag.set {
			flags = append(flags, flag.code)
		}
	}
	return string(flags)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
