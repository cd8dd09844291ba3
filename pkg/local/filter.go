package local

import (
	"fmt"

	"github.com/conduit-lang/pim/pkg/query"
	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/thing"
)

// matcher reports whether a thing satisfies a compiled clause
type matcher func(t *thing.Thing) bool

func never(*thing.Thing) bool  { return false }
func always(*thing.Thing) bool { return true }

// compile turns a clause into a matcher for things of res. Lookup failures and
// unsupported operators are errors. A nil matcher means the clause shape is not one
// the engine evaluates and the clause is skipped.
func (e *Engine) compile(res *schema.Resource, c query.Clause) (matcher, error) {
	switch c := c.(type) {
	case query.LegacyClause:
		// Bare tuples are not evaluated; they match nothing.
		return never, nil
	case query.FieldClause:
		return e.compileField(res, c)
	case query.GroupClause:
		return e.compileGroup(res, c)
	case query.ReferenceClause, query.UnknownClause:
		return nil, nil
	default:
		return nil, nil
	}
}

func (e *Engine) compileField(res *schema.Resource, c query.FieldClause) (matcher, error) {
	f, err := res.MustField(c.Field)
	if err != nil {
		return nil, err
	}
	pred, ok := e.predicates[c.Operator]
	if !ok {
		return nil, fmt.Errorf("%w: %q", query.ErrUnsupportedOperator, c.Operator)
	}
	if c.Count != nil && (!f.IsRelation() || *c.Count < 0) {
		return nil, fmt.Errorf("%w: count on field %s", query.ErrInvalidClause, f.Name())
	}

	return func(t *thing.Thing) bool {
		values := fieldValues(t, f, c.Lang)
		ok := pred(values, c.Value)
		if c.Not {
			ok = !ok
		}
		if ok && c.Count != nil {
			ok = len(values) >= *c.Count
		}
		return ok
	}, nil
}

// compileGroup keeps a thing when any recognized child matches. A group without
// recognized children matches everything. With a relation constraint the children are
// tested against the related things, and at least Count of them must match.
func (e *Engine) compileGroup(res *schema.Resource, c query.GroupClause) (matcher, error) {
	scope := res
	var rel *schema.Field
	if c.Relation != nil {
		f, err := res.MustField(c.Relation.Field)
		if err != nil {
			return nil, err
		}
		if c.Relation.Count < 0 {
			return nil, fmt.Errorf("%w: negative relation count", query.ErrInvalidClause)
		}
		target, err := f.RelatedResource()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", query.ErrInvalidClause, err)
		}
		scope, rel = target, f
	}

	children := make([]matcher, 0, len(c.Children))
	for _, child := range c.Children {
		m, err := e.compile(scope, child)
		if err != nil {
			return nil, err
		}
		if m != nil {
			children = append(children, m)
		}
	}

	match := matcher(always)
	if len(children) > 0 {
		match = func(t *thing.Thing) bool {
			for _, m := range children {
				if m(t) {
					return true
				}
			}
			return false
		}
	}
	if rel == nil {
		return match, nil
	}

	need := c.Relation.Count
	name := rel.Name()
	return func(t *thing.Thing) bool {
		n := 0
		for _, related := range t.RelationSync(name) {
			if match(related) {
				n++
			}
		}
		return n >= need
	}, nil
}

// fieldValues returns the stored values of a field. Relation fields yield the ids of
// the cached related things.
func fieldValues(t *thing.Thing, f *schema.Field, lang string) []any {
	if f.IsRelation() {
		related := t.RelationSync(f.Name())
		out := make([]any, 0, len(related))
		for _, r := range related {
			out = append(out, r.ID().String())
		}
		return out
	}
	return flatten(t.ValueOf(f, lang))
}
