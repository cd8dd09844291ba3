// Package selector describes which scalar fields and which nested relations a query
// fetches. The encoded form is the contract shared by the request builder, both backends
// and the row parser:
//
//	[scalars, "rel1", [scalars, ...], "rel2", [scalars, ...]]
//
// where scalars is "*" for every scalar field or a list of field names.
package selector

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// All selects every scalar field
const All = "*"

// ErrInvalidEncoding is returned when decoding a malformed selector
var ErrInvalidEncoding = errors.New("invalid field selector encoding")

// Node is one level of a field selector tree
type Node struct {
	name     string
	fields   []string
	children []*Node
	byName   map[string]*Node
}

// New returns a root node selecting every scalar field and no relations
func New() *Node {
	return &Node{byName: make(map[string]*Node)}
}

// FromPaths builds a root node with each dotted relation path selected
func FromPaths(paths ...string) *Node {
	n := New()
	for _, p := range paths {
		n.SelectPath(p)
	}
	return n
}

// Name returns the relation name of a non-root node
func (n *Node) Name() string { return n.name }

// Select restricts the scalar fields of this node. Calling it with no names selects all.
func (n *Node) Select(fields ...string) *Node {
	if len(fields) == 0 {
		n.fields = nil
		return n
	}
	n.fields = append([]string(nil), fields...)
	return n
}

// AllFields reports whether every scalar field is selected
func (n *Node) AllFields() bool { return n.fields == nil }

// Fields returns the selected scalar field names, nil when all are selected
func (n *Node) Fields() []string { return append([]string(nil), n.fields...) }

// Includes reports whether a scalar field is selected
func (n *Node) Includes(field string) bool {
	if n.fields == nil {
		return true
	}
	for _, f := range n.fields {
		if f == field {
			return true
		}
	}
	return false
}

// SelectRelation returns the child node for a relation, creating it on first use.
// Repeated calls with the same name return the same node.
func (n *Node) SelectRelation(name string) *Node {
	if child, ok := n.byName[name]; ok {
		return child
	}
	child := &Node{name: name, byName: make(map[string]*Node)}
	n.children = append(n.children, child)
	n.byName[name] = child
	return child
}

// SelectPath selects every relation along a dotted path and returns the deepest node
func (n *Node) SelectPath(path string) *Node {
	cur := n
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			continue
		}
		cur = cur.SelectRelation(seg)
	}
	return cur
}

// Relation returns the child node for a relation if it is selected
func (n *Node) Relation(name string) (*Node, bool) {
	child, ok := n.byName[name]
	return child, ok
}

// Relations returns the selected relation children in selection order
func (n *Node) Relations() []*Node {
	return append([]*Node(nil), n.children...)
}

// Paths returns the dotted path of every leaf relation, in selection order
func (n *Node) Paths() []string {
	var out []string
	for _, c := range n.children {
		sub := c.Paths()
		if len(sub) == 0 {
			out = append(out, c.name)
			continue
		}
		for _, s := range sub {
			out = append(out, c.name+"."+s)
		}
	}
	return out
}

// Encode serializes the node depth-first into its positional array form
func (n *Node) Encode() []any {
	out := make([]any, 0, 1+2*len(n.children))
	if n.fields == nil {
		out = append(out, All)
	} else {
		out = append(out, n.Fields())
	}
	for _, c := range n.children {
		out = append(out, c.name, c.Encode())
	}
	return out
}

// Wrap encodes a non-root node together with its relation name
func (n *Node) Wrap() []any {
	return []any{n.name, n.Encode()}
}

// MarshalJSON encodes the node with Encode
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Encode())
}

// UnmarshalJSON decodes the positional array form
func (n *Node) UnmarshalJSON(data []byte) error {
	dec, err := Decode(data)
	if err != nil {
		return err
	}
	dec.name = n.name
	*n = *dec
	return nil
}

// Decode parses the positional array form. An empty input or JSON null yields a root
// that selects every scalar field.
func Decode(data []byte) (*Node, error) {
	n := New()
	if len(data) == 0 || string(data) == "null" {
		return n, nil
	}
	if err := n.decode(data); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) decode(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(parts) == 0 {
		return nil
	}
	if len(parts)%2 != 1 {
		return fmt.Errorf("%w: expected scalars followed by name/child pairs", ErrInvalidEncoding)
	}

	var all string
	if err := json.Unmarshal(parts[0], &all); err == nil {
		if all != All {
			return fmt.Errorf("%w: unknown scalar marker %q", ErrInvalidEncoding, all)
		}
	} else {
		var fields []string
		if err := json.Unmarshal(parts[0], &fields); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		n.Select(fields...)
	}

	for i := 1; i < len(parts); i += 2 {
		var name string
		if err := json.Unmarshal(parts[i], &name); err != nil || name == "" {
			return fmt.Errorf("%w: relation name at position %d", ErrInvalidEncoding, i)
		}
		if err := n.SelectRelation(name).decode(parts[i+1]); err != nil {
			return err
		}
	}
	return nil
}
