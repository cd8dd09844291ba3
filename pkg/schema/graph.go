// Package schema provides the read-only resource/field graph of one schema snapshot.
// Resources and fields are indexed by id and by name once, at construction, and keep a
// reference to the graph that owns them so relation targets always resolve against the
// same snapshot.
package schema

import (
	"fmt"
	"sync"
)

// Graph owns every resource and field of one schema snapshot
type Graph struct {
	id          SchemaID
	name        string
	defaultLang string
	languages   []string

	resources  []*Resource
	resByID    map[ResourceID]*Resource
	resByName  map[string]*Resource
	fieldsByID map[FieldID]*Field

	mu   sync.RWMutex
	lang string
}

// NewGraph builds the indices of a snapshot in a single pass
func NewGraph(snap Snapshot) (*Graph, error) {
	g := &Graph{
		id:          snap.ID,
		name:        snap.Name,
		defaultLang: snap.DefaultLang,
		languages:   append([]string(nil), snap.Languages...),
		resources:   make([]*Resource, 0, len(snap.Resources)),
		resByID:     make(map[ResourceID]*Resource, len(snap.Resources)),
		resByName:   make(map[string]*Resource, len(snap.Resources)),
		fieldsByID:  make(map[FieldID]*Field),
		lang:        snap.DefaultLang,
	}

	for _, rd := range snap.Resources {
		if _, exists := g.resByID[rd.ID]; exists {
			return nil, fmt.Errorf("%w: resource id %d", ErrDuplicate, rd.ID)
		}
		if _, exists := g.resByName[rd.Name]; exists {
			return nil, fmt.Errorf("%w: resource name %q", ErrDuplicate, rd.Name)
		}

		res := newResource(g, rd)
		for _, fd := range rd.Fields {
			if fd.ResourceID == 0 {
				fd.ResourceID = rd.ID
			}
			if _, exists := g.fieldsByID[fd.ID]; exists {
				return nil, fmt.Errorf("%w: field id %d", ErrDuplicate, fd.ID)
			}
			f := newField(g, res, fd)
			if err := res.add(f); err != nil {
				return nil, err
			}
			g.fieldsByID[fd.ID] = f
		}

		g.resources = append(g.resources, res)
		g.resByID[rd.ID] = res
		g.resByName[rd.Name] = res
	}

	return g, nil
}

// ID returns the schema id
func (g *Graph) ID() SchemaID { return g.id }

// Name returns the schema name
func (g *Graph) Name() string { return g.name }

// DefaultLang returns the default language of the schema
func (g *Graph) DefaultLang() string { return g.defaultLang }

// Languages returns the languages declared by the schema
func (g *Graph) Languages() []string { return append([]string(nil), g.languages...) }

// Lang returns the current language
func (g *Graph) Lang() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lang
}

// SetLang changes the current language used when no language is requested explicitly
func (g *Graph) SetLang(lang string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lang = lang
}

// Resources returns the resources in snapshot order
func (g *Graph) Resources() []*Resource {
	return append([]*Resource(nil), g.resources...)
}

// Resource resolves a resource by id or name
func (g *Graph) Resource(ref Ref) (*Resource, bool) {
	if id, ok := ref.ID(); ok {
		r, found := g.resByID[ResourceID(id)]
		return r, found
	}
	if name, ok := ref.Name(); ok {
		r, found := g.resByName[name]
		return r, found
	}
	return nil, false
}

// MustResource resolves a resource or returns ErrResourceNotFound
func (g *Graph) MustResource(ref Ref) (*Resource, error) {
	r, ok := g.Resource(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, ref)
	}
	return r, nil
}

// Field resolves a field by id through the index. Names are only unique within a
// resource, so a name resolves only when exactly one resource declares it; name lookups
// scan the resources and cost O(resources).
func (g *Graph) Field(ref Ref) (*Field, bool) {
	if id, ok := ref.ID(); ok {
		f, found := g.fieldsByID[FieldID(id)]
		return f, found
	}
	name, ok := ref.Name()
	if !ok {
		return nil, false
	}
	var match *Field
	for _, r := range g.resources {
		if f, found := r.Field(RefName(name)); found {
			if match != nil {
				return nil, false
			}
			match = f
		}
	}
	return match, match != nil
}

// RefreshField replaces the definition of an existing field. The *Field identity is
// preserved, so anything holding it observes the new definition.
func (g *Graph) RefreshField(def FieldDef) error {
	f, ok := g.fieldsByID[def.ID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrFieldNotFound, def.ID)
	}
	if def.ResourceID == 0 {
		def.ResourceID = f.resource.ID()
	}
	if def.ResourceID != f.resource.ID() {
		return fmt.Errorf("%w: field %d cannot move to resource %d", ErrInvalidRefresh, def.ID, def.ResourceID)
	}
	return f.resource.refresh(f, def)
}

// Snapshot returns the current definitions in snapshot form
func (g *Graph) Snapshot() Snapshot {
	snap := Snapshot{
		ID:          g.id,
		Name:        g.name,
		DefaultLang: g.defaultLang,
		Languages:   g.Languages(),
		Resources:   make([]ResourceDef, 0, len(g.resources)),
	}
	for _, r := range g.resources {
		rd := r.def
		fields := r.Fields()
		rd.Fields = make([]FieldDef, 0, len(fields))
		for _, f := range fields {
			rd.Fields = append(rd.Fields, f.Def())
		}
		snap.Resources = append(snap.Resources, rd)
	}
	return snap
}

// translate resolves a translation in priority order: requested, current, default
func (g *Graph) translate(t Translations, lang string) (string, bool) {
	for _, l := range []string{lang, g.Lang(), g.defaultLang} {
		if l == "" {
			continue
		}
		if s, ok := t[l]; ok && s != "" {
			return s, true
		}
	}
	return "", false
}
