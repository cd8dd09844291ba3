package query

import (
	"encoding/json"
	"fmt"

	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/selector"
)

// DefaultPerPage is the page size used when a paginated request does not set one
const DefaultPerPage = 20

// ReturnMode selects the shape of a things response
type ReturnMode string

const (
	ReturnFirst    ReturnMode = "first"
	ReturnList     ReturnMode = "list"
	ReturnPaginate ReturnMode = "paginate"
)

// Valid reports whether the mode is known
func (m ReturnMode) Valid() bool {
	switch m {
	case ReturnFirst, ReturnList, ReturnPaginate:
		return true
	}
	return false
}

// RelatedTo anchors a query to the things related to one thing through a field
type RelatedTo struct {
	Field schema.Ref     `json:"field_id"`
	Thing schema.ThingID `json:"thing_id"`
}

// Request is the payload of a "things" request, shared by every backend
type Request struct {
	Resource  schema.Ref     `json:"resource"`
	Filters   []Clause       `json:"filters"`
	Fields    *selector.Node `json:"fields"`
	Return    ReturnMode     `json:"return"`
	RelatedTo *RelatedTo     `json:"related_to,omitempty"`
	Offset    *int           `json:"offset,omitempty"`
	Page      *int           `json:"page,omitempty"`
	PerPage   *int           `json:"per_page,omitempty"`
}

type requestWire struct {
	Resource  schema.Ref        `json:"resource"`
	Filters   []json.RawMessage `json:"filters"`
	Fields    json.RawMessage   `json:"fields"`
	Return    ReturnMode        `json:"return"`
	RelatedTo *RelatedTo        `json:"related_to,omitempty"`
	Offset    *int              `json:"offset,omitempty"`
	Page      *int              `json:"page,omitempty"`
	PerPage   *int              `json:"per_page,omitempty"`
}

// UnmarshalJSON decodes the filters through DecodeClause
func (r *Request) UnmarshalJSON(data []byte) error {
	var w requestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	filters, err := DecodeClauses(w.Filters)
	if err != nil {
		return err
	}
	fields, err := selector.Decode(w.Fields)
	if err != nil {
		return err
	}
	*r = Request{
		Resource:  w.Resource,
		Filters:   filters,
		Fields:    fields,
		Return:    w.Return,
		RelatedTo: w.RelatedTo,
		Offset:    w.Offset,
		Page:      w.Page,
		PerPage:   w.PerPage,
	}
	return nil
}

// Selector returns the field selector, defaulting to every scalar field
func (r *Request) Selector() *selector.Node {
	if r.Fields == nil {
		return selector.New()
	}
	return r.Fields
}

// PageNumber returns the requested page, at least 1
func (r *Request) PageNumber() int {
	if r.Page == nil || *r.Page < 1 {
		return 1
	}
	return *r.Page
}

// PageSize returns the requested page size or DefaultPerPage
func (r *Request) PageSize() int {
	if r.PerPage == nil || *r.PerPage < 1 {
		return DefaultPerPage
	}
	return *r.PerPage
}

// Page is the response shape of a paginated request
type Page[T any] struct {
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
	Data        []T `json:"data"`
}

// Info returns the page metadata without data
func (p Page[T]) Info() PageInfo {
	return PageInfo{PerPage: p.PerPage, CurrentPage: p.CurrentPage, Total: p.Total, LastPage: p.LastPage}
}

// PageInfo is the metadata of a page
type PageInfo struct {
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// Paginate slices items into one page. LastPage is 1 + total/perPage, matching the
// remote service even when total is an exact multiple of perPage.
func Paginate[T any](items []T, page, perPage int) (Page[T], error) {
	if perPage < 1 {
		return Page[T]{}, fmt.Errorf("invalid page size %d", perPage)
	}
	if page < 1 {
		page = 1
	}
	total := len(items)
	start, end := total, total
	if page-1 <= total/perPage {
		start = (page - 1) * perPage
		end = start + min(perPage, total-start)
	}

	data := make([]T, end-start)
	copy(data, items[start:end])

	return Page[T]{
		PerPage:     perPage,
		CurrentPage: page,
		Total:       total,
		LastPage:    1 + total/perPage,
		Data:        data,
	}, nil
}
