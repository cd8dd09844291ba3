package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// SchemaID identifies one schema snapshot
type SchemaID int64

// ResourceID identifies a resource within a schema
type ResourceID int64

// FieldID identifies a field within a schema
type FieldID int64

// Ref references a resource or field either by its numeric id or by its name.
// The zero Ref references nothing.
type Ref struct {
	id    int64
	name  string
	hasID bool
}

// RefID returns a reference by numeric id
func RefID[T ~int64 | ~int](id T) Ref {
	return Ref{id: int64(id), hasID: true}
}

// RefName returns a reference by name
func RefName(name string) Ref {
	return Ref{name: name}
}

// ParseRef interprets s as an id when it is an integer and as a name otherwise
func ParseRef(s string) Ref {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return RefID(n)
	}
	return RefName(s)
}

// ID returns the numeric id and whether the reference is by id
func (r Ref) ID() (int64, bool) {
	return r.id, r.hasID
}

// Name returns the name and whether the reference is by name
func (r Ref) Name() (string, bool) {
	return r.name, !r.hasID && r.name != ""
}

// IsZero reports whether the reference is empty
func (r Ref) IsZero() bool {
	return !r.hasID && r.name == ""
}

// String returns the id or the name
func (r Ref) String() string {
	if r.hasID {
		return strconv.FormatInt(r.id, 10)
	}
	return r.name
}

// MarshalJSON encodes the reference as a number or a string
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.hasID {
		return []byte(strconv.FormatInt(r.id, 10)), nil
	}
	if r.name == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.name)
}

// UnmarshalJSON accepts a number or a string
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RefName(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid reference %s: %w", data, err)
	}
	id, err := n.Int64()
	if err != nil {
		return fmt.Errorf("invalid reference %s: %w", data, err)
	}
	*r = RefID(id)
	return nil
}

// ThingID identifies one thing. Remote ids may be numbers or strings; both are kept as
// their decimal or literal string form.
type ThingID string

// String returns the id as a string
func (id ThingID) String() string {
	return string(id)
}

// MarshalJSON writes integer-looking ids as JSON numbers
func (id ThingID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a number or a string
func (id *ThingID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ThingID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid thing id %s: %w", data, err)
	}
	*id = ThingID(n.String())
	return nil
}
