package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/conduit-lang/pim/pkg/schema"
)

// Clause is one node of a filter expression. The set of implementations is closed:
// FieldClause, GroupClause, ReferenceClause, LegacyClause and UnknownClause.
type Clause interface {
	json.Marshaler
	isClause()
}

// Clause type tags on the wire
const (
	TypeField     = "field"
	TypeGroup     = "group"
	TypeReference = "reference"
)

// FieldClause tests a single field of a thing
type FieldClause struct {
	Field    schema.Ref
	Operator Operator
	Value    any
	// Lang selects the translation for translatable fields; empty means current
	Lang string
	// Not inverts the test
	Not bool
	// Count requires at least this many related things, for relation fields
	Count *int
}

// GroupClause combines child clauses, optionally constrained through a relation
type GroupClause struct {
	Or       bool
	Children []Clause
	Relation *RelationConstraint
}

// RelationConstraint requires a number of related things matching a group
type RelationConstraint struct {
	Field schema.Ref `json:"field"`
	Count int        `json:"count"`
}

// ReferenceClause references a saved filter
type ReferenceClause struct {
	FilterID int64
}

// LegacyClause is the bare [field, operator, value] tuple of older clients
type LegacyClause struct {
	Field    any
	Operator any
	Value    any
}

// UnknownClause keeps a clause whose shape is not recognized
type UnknownClause struct {
	Raw json.RawMessage
}

func (FieldClause) isClause()     {}
func (GroupClause) isClause()     {}
func (ReferenceClause) isClause() {}
func (LegacyClause) isClause()    {}
func (UnknownClause) isClause()   {}

type fieldWire struct {
	Type     string     `json:"type"`
	Field    schema.Ref `json:"field"`
	Operator Operator   `json:"operator"`
	Value    any        `json:"value"`
	Lang     string     `json:"lang,omitempty"`
	Not      bool       `json:"not,omitempty"`
	Count    *int       `json:"count,omitempty"`
}

type groupWire struct {
	Type     string              `json:"type"`
	Or       bool                `json:"or,omitempty"`
	Children []json.RawMessage   `json:"children"`
	Relation *RelationConstraint `json:"relation,omitempty"`
}

type referenceWire struct {
	Type     string `json:"type"`
	FilterID int64  `json:"filter_id"`
}

// MarshalJSON implements json.Marshaler
func (c FieldClause) MarshalJSON() ([]byte, error) {
	return json.Marshal(fieldWire{
		Type:     TypeField,
		Field:    c.Field,
		Operator: c.Operator,
		Value:    c.Value,
		Lang:     c.Lang,
		Not:      c.Not,
		Count:    c.Count,
	})
}

// MarshalJSON implements json.Marshaler
func (c GroupClause) MarshalJSON() ([]byte, error) {
	w := groupWire{Type: TypeGroup, Or: c.Or, Relation: c.Relation, Children: make([]json.RawMessage, 0, len(c.Children))}
	for _, child := range c.Children {
		data, err := child.MarshalJSON()
		if err != nil {
			return nil, err
		}
		w.Children = append(w.Children, data)
	}
	return json.Marshal(w)
}

// MarshalJSON implements json.Marshaler
func (c ReferenceClause) MarshalJSON() ([]byte, error) {
	return json.Marshal(referenceWire{Type: TypeReference, FilterID: c.FilterID})
}

// MarshalJSON implements json.Marshaler
func (c LegacyClause) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Field, c.Operator, c.Value})
}

// MarshalJSON implements json.Marshaler
func (c UnknownClause) MarshalJSON() ([]byte, error) {
	if len(c.Raw) == 0 {
		return []byte("null"), nil
	}
	return c.Raw, nil
}

// DecodeClause decodes one clause. Shapes that are valid JSON but not a known clause
// become an UnknownClause rather than an error.
func DecodeClause(raw json.RawMessage) (Clause, error) {
	trimmed := bytes.TrimSpace(raw)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidClause)
	}

	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		var tuple []any
		if err := json.Unmarshal(trimmed, &tuple); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidClause, err)
		}
		if len(tuple) == 3 {
			return LegacyClause{Field: tuple[0], Operator: tuple[1], Value: tuple[2]}, nil
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(trimmed, &head); err != nil {
			break
		}
		switch head.Type {
		case TypeField:
			var w fieldWire
			if err := json.Unmarshal(trimmed, &w); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidClause, err)
			}
			return FieldClause{Field: w.Field, Operator: w.Operator, Value: w.Value, Lang: w.Lang, Not: w.Not, Count: w.Count}, nil
		case TypeGroup:
			var w groupWire
			if err := json.Unmarshal(trimmed, &w); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidClause, err)
			}
			g := GroupClause{Or: w.Or, Relation: w.Relation, Children: make([]Clause, 0, len(w.Children))}
			for _, child := range w.Children {
				c, err := DecodeClause(child)
				if err != nil {
					return nil, err
				}
				g.Children = append(g.Children, c)
			}
			return g, nil
		case TypeReference:
			var w referenceWire
			if err := json.Unmarshal(trimmed, &w); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidClause, err)
			}
			return ReferenceClause{FilterID: w.FilterID}, nil
		}
	}

	return UnknownClause{Raw: append(json.RawMessage(nil), trimmed...)}, nil
}

// DecodeClauses decodes a list of clauses
func DecodeClauses(raws []json.RawMessage) ([]Clause, error) {
	out := make([]Clause, 0, len(raws))
	for _, raw := range raws {
		c, err := DecodeClause(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
