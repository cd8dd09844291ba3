package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
)

// ArrayDelimiter joins array values before they are compared for change detection.
// Values that themselves contain the delimiter can compare equal when they are not.
const ArrayDelimiter = "|"

// Field is one attribute of a resource, possibly a relation to another resource
type Field struct {
	graph    *Graph
	resource *Resource
	def      atomic.Pointer[FieldDef]
}

func newField(g *Graph, r *Resource, def FieldDef) *Field {
	f := &Field{graph: g, resource: r}
	f.def.Store(&def)
	return f
}

// Def returns a copy of the current definition
func (f *Field) Def() FieldDef { return *f.def.Load() }

// ID returns the field id
func (f *Field) ID() FieldID { return f.def.Load().ID }

// Name returns the codename of the field
func (f *Field) Name() string { return f.def.Load().Name }

// Type returns the value type
func (f *Field) Type() FieldType { return f.def.Load().Type }

// IsTranslatable reports whether values are stored per language
func (f *Field) IsTranslatable() bool { return f.def.Load().IsTranslatable }

// IsMultiple reports whether the field holds a list of values
func (f *Field) IsMultiple() bool { return f.def.Load().IsMultiple }

// IsUnique reports whether values are unique across things
func (f *Field) IsUnique() bool { return f.def.Load().IsUnique }

// Unit returns the measurement unit, if any
func (f *Field) Unit() string { return f.def.Load().Unit }

// Order returns the display position within the resource
func (f *Field) Order() int { return f.def.Load().Order }

// Opts returns the type-specific options
func (f *Field) Opts() map[string]any { return f.def.Load().Opts }

// Resource returns the owning resource
func (f *Field) Resource() *Resource { return f.resource }

// Graph returns the owning graph
func (f *Field) Graph() *Graph { return f.graph }

// Ref returns an id reference to this field
func (f *Field) Ref() Ref { return RefID(f.ID()) }

// IsRelation reports whether the field links to another resource
func (f *Field) IsRelation() bool { return f.Type() == TypeRelation }

// RelType returns the relation direction, or "" for scalar fields
func (f *Field) RelType() RelationType {
	if rt := f.def.Load().RelType; rt != nil {
		return *rt
	}
	return ""
}

// IsTextual reports whether values of this field are strings
func (f *Field) IsTextual() bool {
	switch f.Type() {
	case TypeText, TypeTextarea, TypeHTML, TypeEmail, TypeURL:
		return true
	}
	return false
}

// Label resolves the label in the requested, current or default language
func (f *Field) Label(lang string) string {
	if s, ok := f.graph.translate(f.def.Load().Label, lang); ok {
		return s
	}
	return fmt.Sprintf("#%d", f.ID())
}

// Description resolves the description like Label
func (f *Field) Description(lang string) string {
	if s, ok := f.graph.translate(f.def.Load().Description, lang); ok {
		return s
	}
	return fmt.Sprintf("#%d", f.ID())
}

// Identifier returns the storage codename of the field: its name, suffixed with the
// language for translatable fields. An empty lang means the current language.
func (f *Field) Identifier(lang string) string {
	def := f.def.Load()
	if !def.IsTranslatable {
		return def.Name
	}
	if lang == "" {
		lang = f.graph.Lang()
	}
	return def.Name + "_" + lang
}

// RelatedResource returns the target resource of a relation field
func (f *Field) RelatedResource() (*Resource, error) {
	def := f.def.Load()
	if def.Type != TypeRelation || def.RelResID == nil {
		return nil, fmt.Errorf("%w: field %s is not a relation", ErrMissingRelationTarget, def.Name)
	}
	r, ok := f.graph.Resource(RefID(*def.RelResID))
	if !ok {
		return nil, fmt.Errorf("%w: resource %d for field %s", ErrMissingRelationTarget, *def.RelResID, def.Name)
	}
	return r, nil
}

// RelatedField returns the reciprocal field on the target resource
func (f *Field) RelatedField() (*Field, error) {
	def := f.def.Load()
	if def.Type != TypeRelation || def.RelFieldID == nil {
		return nil, fmt.Errorf("%w: field %s is not a relation", ErrMissingRelationTarget, def.Name)
	}
	rel, ok := f.graph.Field(RefID(*def.RelFieldID))
	if !ok {
		return nil, fmt.Errorf("%w: field %d for field %s", ErrMissingRelationTarget, *def.RelFieldID, def.Name)
	}
	return rel, nil
}

// ValuesDiffer reports whether two stored values of this field are different
func (f *Field) ValuesDiffer(a, b any) bool {
	if f.IsTextual() {
		return textOf(a) != textOf(b)
	}

	as, aIsSlice := a.([]any)
	bs, bIsSlice := b.([]any)
	if aIsSlice || bIsSlice {
		return f.ValueArraysDiffer(as, bs)
	}

	am, aIsObj := a.(map[string]any)
	bm, bIsObj := b.(map[string]any)
	if aIsObj && bIsObj {
		return textOf(am["token"]) != textOf(bm["token"]) || textOf(am["name"]) != textOf(bm["name"])
	}

	if a == nil || b == nil {
		return a != b
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
		return a != b
	}
	return true
}

// ValueArraysDiffer compares two array values by their delimiter-joined form
func (f *Field) ValueArraysDiffer(a, b []any) bool {
	return joinValues(a) != joinValues(b)
}

func joinValues(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = textOf(v)
	}
	return strings.Join(parts, ArrayDelimiter)
}

func textOf(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
