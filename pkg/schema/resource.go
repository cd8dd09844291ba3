package schema

import (
	"fmt"
	"sync"
)

// Resource is an entity type and the ordered list of its fields
type Resource struct {
	graph *Graph
	def   ResourceDef

	mu     sync.RWMutex
	fields []*Field
	byID   map[FieldID]*Field
	byName map[string]*Field
}

func newResource(g *Graph, def ResourceDef) *Resource {
	def.Fields = nil
	return &Resource{
		graph:  g,
		def:    def,
		byID:   make(map[FieldID]*Field),
		byName: make(map[string]*Field),
	}
}

// ID returns the resource id
func (r *Resource) ID() ResourceID { return r.def.ID }

// Name returns the resource name
func (r *Resource) Name() string { return r.def.Name }

// Type returns the resource type
func (r *Resource) Type() string { return r.def.Type }

// IsMultiple reports whether the resource holds more than one thing
func (r *Resource) IsMultiple() bool { return r.def.IsMultiple }

// IsTranslatable reports whether the resource is translatable
func (r *Resource) IsTranslatable() bool { return r.def.IsTranslatable }

// Graph returns the owning schema graph
func (r *Resource) Graph() *Graph { return r.graph }

// Ref returns an id reference to this resource
func (r *Resource) Ref() Ref { return RefID(r.def.ID) }

// Label resolves the label in the requested, current or default language
func (r *Resource) Label(lang string) string {
	if s, ok := r.graph.translate(r.def.Label, lang); ok {
		return s
	}
	return fmt.Sprintf("#%d", r.def.ID)
}

// Fields returns the fields in declaration order
func (r *Resource) Fields() []*Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Field(nil), r.fields...)
}

// Field resolves a field of this resource by id or name
func (r *Resource) Field(ref Ref) (*Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := ref.ID(); ok {
		f, found := r.byID[FieldID(id)]
		return f, found
	}
	if name, ok := ref.Name(); ok {
		f, found := r.byName[name]
		return f, found
	}
	return nil, false
}

// MustField resolves a field or returns ErrFieldNotFound
func (r *Resource) MustField(ref Ref) (*Field, error) {
	f, ok := r.Field(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s on resource %s", ErrFieldNotFound, ref, r.def.Name)
	}
	return f, nil
}

func (r *Resource) add(f *Field) error {
	def := f.Def()
	if _, exists := r.byID[def.ID]; exists {
		return fmt.Errorf("%w: field id %d on resource %s", ErrDuplicate, def.ID, r.def.Name)
	}
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("%w: field name %q on resource %s", ErrDuplicate, def.Name, r.def.Name)
	}
	r.fields = append(r.fields, f)
	r.byID[def.ID] = f
	r.byName[def.Name] = f
	return nil
}

func (r *Resource) refresh(f *Field, def FieldDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := f.Def()
	if def.Name != old.Name {
		if other, exists := r.byName[def.Name]; exists && other != f {
			return fmt.Errorf("%w: field name %q on resource %s", ErrDuplicate, def.Name, r.def.Name)
		}
		delete(r.byName, old.Name)
		r.byName[def.Name] = f
	}
	f.def.Store(&def)
	return nil
}
