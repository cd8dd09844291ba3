// Package query builds the backend-agnostic "things" request: target resource, filter
// clauses, field selector, return mode, pagination and an optional related-to anchor.
package query

import (
	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/selector"
)

// Builder provides a fluent API for building a things request
type Builder struct {
	resource  schema.Ref
	filters   []Clause
	fields    *selector.Node
	ret       ReturnMode
	relatedTo *RelatedTo
	offset    *int
	page      *int
	perPage   *int
}

// New creates a builder for the given resource, returning a list by default
func New(resource schema.Ref) *Builder {
	return &Builder{
		resource: resource,
		filters:  make([]Clause, 0),
		fields:   selector.New(),
		ret:      ReturnList,
	}
}

// Resource returns the target resource reference
func (b *Builder) Resource() schema.Ref { return b.resource }

// Where adds an equality test
func (b *Builder) Where(field schema.Ref, value any) *Builder {
	return b.WhereOp(field, OpEqual, value)
}

// WhereOp adds a field test with an explicit operator
func (b *Builder) WhereOp(field schema.Ref, op Operator, value any) *Builder {
	b.filters = append(b.filters, FieldClause{Field: field, Operator: op, Value: value})
	return b
}

// WhereNot adds an inverted field test
func (b *Builder) WhereNot(field schema.Ref, op Operator, value any) *Builder {
	b.filters = append(b.filters, FieldClause{Field: field, Operator: op, Value: value, Not: true})
	return b
}

// Filter appends arbitrary clauses
func (b *Builder) Filter(clauses ...Clause) *Builder {
	b.filters = append(b.filters, clauses...)
	return b
}

// Group appends a group of child clauses
func (b *Builder) Group(children ...Clause) *Builder {
	b.filters = append(b.filters, GroupClause{Children: children})
	return b
}

// Reference appends a reference to a saved filter
func (b *Builder) Reference(filterID int64) *Builder {
	b.filters = append(b.filters, ReferenceClause{FilterID: filterID})
	return b
}

// RelatedTo restricts the query to the things related to thingID through field
func (b *Builder) RelatedTo(field schema.Ref, thingID schema.ThingID) *Builder {
	b.relatedTo = &RelatedTo{Field: field, Thing: thingID}
	return b
}

// With selects one or more dotted relation paths to be embedded in the response
func (b *Builder) With(paths ...string) *Builder {
	for _, p := range paths {
		b.fields.SelectPath(p)
	}
	return b
}

// Select restricts the scalar fields of the root level
func (b *Builder) Select(fields ...string) *Builder {
	b.fields.Select(fields...)
	return b
}

// Fields returns the field selector for direct manipulation
func (b *Builder) Fields() *selector.Node { return b.fields }

// First asks for the first matching thing only
func (b *Builder) First() *Builder {
	b.ret = ReturnFirst
	return b
}

// List asks for every matching thing
func (b *Builder) List() *Builder {
	b.ret = ReturnList
	return b
}

// Paginate asks for one page of matching things
func (b *Builder) Paginate(page, perPage int) *Builder {
	b.ret = ReturnPaginate
	b.page = &page
	b.perPage = &perPage
	return b
}

// Return sets the return mode directly
func (b *Builder) Return(mode ReturnMode) *Builder {
	b.ret = mode
	return b
}

// ReturnMode returns the current return mode
func (b *Builder) ReturnMode() ReturnMode { return b.ret }

// Offset skips the first n matching things
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

// Request returns the request payload
func (b *Builder) Request() Request {
	return Request{
		Resource:  b.resource,
		Filters:   append([]Clause{}, b.filters...),
		Fields:    b.fields,
		Return:    b.ret,
		RelatedTo: b.relatedTo,
		Offset:    b.offset,
		Page:      b.page,
		PerPage:   b.perPage,
	}
}
