package commands

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/pim/internal/cli/ui"
	"github.com/conduit-lang/pim/pkg/query"
	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/thing"
	"github.com/spf13/cobra"
)

type thingsOptions struct {
	where     []string
	filters   []string
	not       []string
	with      []string
	fields    []string
	relatedTo string
	first     bool
	page      int
	perPage   int
	offset    int
}

func newThingsCommand(opts *options) *cobra.Command {
	topts := &thingsOptions{}

	cmd := &cobra.Command{
		Use:   "things <resource>",
		Short: "Query the things of a resource",
		Long: `Query the things of a resource.

Filters given with --where and --filter must all match. A filter is written
as "field operator value"; operators are =, <>, like, not_like, empty and
not_empty. Relations named with --with are loaded together with the things.

Examples:
  pim things product
  pim things product --where sku=A-1
  pim things product --filter "title like shirt" --with category
  pim things product --page 2 --per-page 10
  pim things product --related-to products=c1 --format json`,
		Args: cobra.ExactArgs(1),
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

			b, err := topts.build(res, g.Lang(), opts.noColor)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case topts.first:
				t, err := a.session.First(cmd.Context(), b)
				if err != nil {
					return err
				}
				if t == nil {
					fmt.Fprintln(out, "No things found")
					return nil
				}
				return writeThing(out, opts, t, b.Fields())

			case topts.page > 0:
				result, err := a.session.Paginate(cmd.Context(), b, topts.page, topts.perPage)
				if err != nil {
					return err
				}
				if opts.format == formatJSON {
					rows := make([]thing.Row, 0, len(result.Things))
					for _, t := range result.Things {
						rows = append(rows, t.Row(b.Fields()))
					}
					return writeJSON(out, query.Page[thing.Row]{
						Data:        rows,
						PerPage:     result.Page.PerPage,
						CurrentPage: result.Page.CurrentPage,
						Total:       result.Page.Total,
						LastPage:    result.Page.LastPage,
					})
				}
				if err := writeThings(out, opts, res, result.Things, b.Fields()); err != nil {
					return err
				}
				p := result.Page
				fmt.Fprintf(out, "\nPage %d of %d (%d total)\n", p.CurrentPage, p.LastPage, p.Total)
				return nil

			default:
				things, err := a.session.List(cmd.Context(), b)
				if err != nil {
					return err
				}
				if err := writeThings(out, opts, res, things, b.Fields()); err != nil {
					return err
				}
				if opts.format == formatTable {
					fmt.Fprintf(out, "\n%s\n", ui.Success(fmt.Sprintf("%d things", len(things)), opts.noColor))
				}
				return nil
			}
		},
	}

	cmd.Flags().StringArrayVarP(&topts.where, "where", "w", nil, "Equality filter field=value (repeatable)")
	cmd.Flags().StringArrayVarP(&topts.filters, "filter", "f", nil, `Filter "field operator value" (repeatable)`)
	cmd.Flags().StringArrayVar(&topts.not, "not", nil, `Negated filter "field operator value" (repeatable)`)
	cmd.Flags().StringSliceVar(&topts.with, "with", nil, "Relation paths to load, e.g. category,variants.product")
	cmd.Flags().StringSliceVar(&topts.fields, "select", nil, "Fields to return")
	cmd.Flags().StringVar(&topts.relatedTo, "related-to", "", "Only things another thing links to, as field=id of that thing")
	cmd.Flags().BoolVar(&topts.first, "first", false, "Return the first matching thing only")
	cmd.Flags().IntVar(&topts.page, "page", 0, "Page number to return")
	cmd.Flags().IntVar(&topts.perPage, "per-page", 20, "Things per page")
	cmd.Flags().IntVar(&topts.offset, "offset", 0, "Things to skip")

	return cmd
}

// build turns the flags into a query on res, validating every field name against it.
// Translatable fields are compared in lang.
func (o *thingsOptions) build(res *schema.Resource, lang string, noColor bool) (*query.Builder, error) {
	b := query.New(res.Ref())

	for _, w := range o.where {
		name, value, ok := strings.Cut(w, "=")
		if !ok {
			return nil, fmt.Errorf("%w: --where %q must be field=value", query.ErrInvalidClause, w)
		}
		f, err := lookupField(res, name, noColor)
		if err != nil {
			return nil, err
		}
		b.Filter(query.FieldClause{Field: f.Ref(), Operator: query.OpEqual, Value: value, Lang: lang})
	}

	for _, negate := range []bool{false, true} {
		exprs := o.filters
		if negate {
			exprs = o.not
		}
		for _, expr := range exprs {
			c, err := parseFilter(res, expr, noColor)
			if err != nil {
				return nil, err
			}
			c.Not = negate
			c.Lang = lang
			b.Filter(c)
		}
	}

	if o.relatedTo != "" {
		name, id, ok := strings.Cut(o.relatedTo, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: --related-to %q must be field=id", query.ErrInvalidClause, o.relatedTo)
		}
		b.RelatedTo(schema.ParseRef(name), schema.ThingID(id))
	}

	if len(o.fields) > 0 {
		names := make([]string, 0, len(o.fields))
		for _, name := range o.fields {
			f, err := lookupField(res, name, noColor)
			if err != nil {
				return nil, err
			}
			names = append(names, f.Name())
		}
		b.Select(names...)
	}
	if len(o.with) > 0 {
		for _, path := range o.with {
			head, _, _ := strings.Cut(path, ".")
			if _, err := lookupField(res, head, noColor); err != nil {
				return nil, err
			}
		}
		b.With(o.with...)
	}
	if o.offset > 0 {
		b.Offset(o.offset)
	}
	return b, nil
}

// parseFilter reads "field operator value". The value may contain spaces and is
// omitted for empty and not_empty.
func parseFilter(res *schema.Resource, expr string, noColor bool) (query.FieldClause, error) {
	parts := strings.Fields(expr)
	if len(parts) < 2 {
		return query.FieldClause{}, fmt.Errorf("%w: --filter %q must be \"field operator value\"", query.ErrInvalidClause, expr)
	}
	f, err := lookupField(res, parts[0], noColor)
	if err != nil {
		return query.FieldClause{}, err
	}
	op, err := query.ParseOperator(parts[1])
	if err != nil {
		return query.FieldClause{}, err
	}

	c := query.FieldClause{Field: f.Ref(), Operator: op}
	if len(parts) > 2 {
		c.Value = strings.Join(parts[2:], " ")
	}
	return c, nil
}

func lookupField(res *schema.Resource, name string, noColor bool) (*schema.Field, error) {
	f, ok := res.Field(schema.ParseRef(name))
	if !ok {
		return nil, fieldNotFound(res, name, noColor)
	}
	return f, nil
}
