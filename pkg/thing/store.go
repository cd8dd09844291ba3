package thing

import (
	"fmt"
	"sync"

	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/google/uuid"
)

// Store is an identity map of things for one schema graph. Each (resource, id) pair is
// interned once; later rows for the same pair update the existing thing in place.
type Store struct {
	graph   *schema.Graph
	session *Session

	mu      sync.RWMutex
	byKey   map[thingKey]*Thing
	ordered map[schema.ResourceID][]*Thing
}

// NewStore creates an empty store for a graph
func NewStore(g *schema.Graph) *Store {
	return &Store{
		graph:   g,
		byKey:   make(map[thingKey]*Thing),
		ordered: make(map[schema.ResourceID][]*Thing),
	}
}

// Graph returns the schema graph of the store
func (s *Store) Graph() *schema.Graph { return s.graph }

// Get returns a thing by resource and id
func (s *Store) Get(resource schema.Ref, id schema.ThingID) (*Thing, bool) {
	r, ok := s.graph.Resource(resource)
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byKey[thingKey{resource: r.ID(), id: id}]
	return t, ok
}

// Things returns the things of a resource in insertion order
func (s *Store) Things(resource schema.Ref) ([]*Thing, error) {
	r, err := s.graph.MustResource(resource)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Thing(nil), s.ordered[r.ID()]...), nil
}

// Len returns the number of interned things
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Merge turns rows into things in one pass. Rows without a resource_id belong to
// resource. Nested relation rows become things too and are installed in the parent's
// relation cache, so those aliases never need a fetch.
func (s *Store) Merge(resource *schema.Resource, rows []Row) ([]*Thing, error) {
	out := make([]*Thing, 0, len(rows))
	for _, row := range rows {
		t, err := s.mergeRow(resource, row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) mergeRow(resource *schema.Resource, row Row) (*Thing, error) {
	r := resource
	if row.ResourceID != 0 {
		var ok bool
		if r, ok = s.graph.Resource(schema.RefID(row.ResourceID)); !ok {
			return nil, fmt.Errorf("%w: %d for thing %s", schema.ErrResourceNotFound, row.ResourceID, row.ID)
		}
	}
	if r == nil {
		return nil, fmt.Errorf("%w: row %s has no resource", schema.ErrResourceNotFound, row.ID)
	}

	t := s.intern(r, row.ID)
	t.merge(row)

	for alias, childRows := range row.Relations {
		f, err := r.MustField(schema.RefName(alias))
		if err != nil {
			return nil, err
		}
		target, err := f.RelatedResource()
		if err != nil {
			return nil, err
		}
		children, err := s.Merge(target, childRows)
		if err != nil {
			return nil, err
		}
		t.install(alias, children)
	}
	return t, nil
}

func (s *Store) intern(r *schema.Resource, id schema.ThingID) *Thing {
	k := thingKey{resource: r.ID(), id: id}

	s.mu.RLock()
	t, ok := s.byKey[k]
	s.mu.RUnlock()
	if ok {
		return t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byKey[k]; ok {
		return t
	}
	t = newThing(s, r, id)
	s.byKey[k] = t
	s.ordered[r.ID()] = append(s.ordered[r.ID()], t)
	return t
}

// Add creates a thing locally, or updates the existing one with the same id. An empty id
// is replaced by a random UUID.
func (s *Store) Add(resource schema.Ref, id schema.ThingID, values map[string]any) (*Thing, error) {
	r, err := s.graph.MustResource(resource)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = schema.ThingID(uuid.NewString())
	}
	t := s.intern(r, id)
	t.merge(Row{ID: id, Fields: values})
	return t, nil
}

// Relate links parent to children through a relation field and links each child back
// through the reciprocal field. Existing cached links are kept.
func (s *Store) Relate(parent *Thing, alias string, children ...*Thing) error {
	f, err := parent.resource.MustField(schema.RefName(alias))
	if err != nil {
		return err
	}
	target, err := f.RelatedResource()
	if err != nil {
		return err
	}
	reciprocal, err := f.RelatedField()
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.resource != target {
			return fmt.Errorf("%w: %s cannot be related through %s", ErrResourceMismatch, c, f.Name())
		}
	}

	existing, _ := parent.cached(alias)
	parent.install(alias, union(existing, children))

	for _, c := range children {
		back, _ := c.cached(reciprocal.Name())
		c.install(reciprocal.Name(), union(back, []*Thing{parent}))
	}
	return nil
}
