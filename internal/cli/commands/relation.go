package commands

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/selector"
	"github.com/spf13/cobra"
)

func newRelationCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "relation <resource> <id> <path>",
		Short: "Follow a relation path from one thing",
		Long: `Follow a dotted relation path from one thing and list the things it reaches.

Each hop is fetched once; things reached through several parents are listed once.

Examples:
  pim relation product 1 category
  pim relation category 10 products.variants`,
		Args: cobra.ExactArgs(3),
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
			res, ok := g.Resource(schema.ParseRef(args[0]))
			if !ok {
				return resourceNotFound(g, args[0], opts.noColor)
			}
			head, _, _ := strings.Cut(args[2], ".")
			if f, ok := res.Field(schema.RefName(head)); !ok || !f.IsRelation() {
				return fieldNotFound(res, head, opts.noColor)
			}

			t, err := a.session.Store().Add(res.Ref(), schema.ThingID(args[1]), nil)
			if err != nil {
				return err
			}
			things, err := t.Relation(cmd.Context(), args[2])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(things) == 0 {
				if opts.format == formatJSON {
					return writeJSON(out, []any{})
				}
				fmt.Fprintln(out, "No things found")
				return nil
			}
			return writeThings(out, opts, things[0].Resource(), things, selector.New())
		},
	}
}
