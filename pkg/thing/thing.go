// Package thing holds populated entity instances and resolves the relation graph
// between them. Things are interned per store, so the same (resource, id) pair is always
// the same *Thing, and each thing caches the things reachable through its relation
// fields under the field name.
package thing

import (
	"fmt"
	"sync"

	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/selector"
	"golang.org/x/sync/singleflight"
)

// Thing is one instance of a resource
type Thing struct {
	id       schema.ThingID
	resource *schema.Resource
	store    *Store

	mu        sync.RWMutex
	label     string
	labels    schema.Translations
	values    map[string]any
	relations map[string][]*Thing

	flight singleflight.Group
}

func newThing(s *Store, r *schema.Resource, id schema.ThingID) *Thing {
	return &Thing{
		id:        id,
		resource:  r,
		store:     s,
		values:    make(map[string]any),
		relations: make(map[string][]*Thing),
	}
}

// ID returns the thing id
func (t *Thing) ID() schema.ThingID { return t.id }

// Resource returns the resource of the thing
func (t *Thing) Resource() *schema.Resource { return t.resource }

// Label resolves the display label in the requested, current or default language,
// falling back to the untranslated label and finally to "#<id>"
func (t *Thing) Label(lang string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	g := t.resource.Graph()
	for _, l := range []string{lang, g.Lang(), g.DefaultLang()} {
		if s := t.labels[l]; l != "" && s != "" {
			return s
		}
	}
	if t.label != "" {
		return t.label
	}
	return "#" + t.id.String()
}

// Value returns the stored value of a field in the given language, nil when unset
func (t *Thing) Value(field schema.Ref, lang string) (any, error) {
	f, err := t.resource.MustField(field)
	if err != nil {
		return nil, err
	}
	return t.ValueOf(f, lang), nil
}

// ValueOf returns the stored value of a resolved field
func (t *Thing) ValueOf(f *schema.Field, lang string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.values[f.Identifier(lang)]
}

// Values returns a copy of the stored values keyed by codename
func (t *Thing) Values() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]any, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// IsResolved reports whether a relation alias is cached
func (t *Thing) IsResolved(alias string) bool {
	_, ok := t.cached(alias)
	return ok
}

func (t *Thing) cached(alias string) ([]*Thing, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list, ok := t.relations[alias]
	return list, ok
}

func (t *Thing) install(alias string, list []*Thing) {
	if list == nil {
		list = []*Thing{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.relations[alias] = list
}

func (t *Thing) merge(row Row) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if row.Label != "" {
		t.label = row.Label
	}
	if len(row.Labels) > 0 {
		t.labels = row.Labels
	}
	for k, v := range row.Fields {
		t.values[k] = v
	}
}

// Row serializes the thing, embedding the relations the selector names. Relations that
// are not cached are embedded as empty lists.
func (t *Thing) Row(sel *selector.Node) Row {
	if sel == nil {
		sel = selector.New()
	}

	t.mu.RLock()
	row := Row{
		ID:         t.id,
		ResourceID: t.resource.ID(),
		Label:      t.label,
		Labels:     t.labels,
		Fields:     make(map[string]any, len(t.values)),
	}
	for k, v := range t.values {
		if sel.AllFields() {
			row.Fields[k] = v
			continue
		}
		if f := t.fieldOfCodename(k); f != nil && sel.Includes(f.Name()) {
			row.Fields[k] = v
		}
	}
	t.mu.RUnlock()

	children := sel.Relations()
	if len(children) == 0 {
		return row
	}
	row.Relations = make(map[string][]Row, len(children))
	for _, child := range children {
		list, _ := t.cached(child.Name())
		rows := make([]Row, 0, len(list))
		for _, rel := range list {
			rows = append(rows, rel.Row(child))
		}
		row.Relations[child.Name()] = rows
	}
	return row
}

// fieldOfCodename maps a stored key back to its field. Exact names win over
// translated codenames, which must end in a known language.
func (t *Thing) fieldOfCodename(key string) *schema.Field {
	fields := t.resource.Fields()
	for _, f := range fields {
		if !f.IsTranslatable() && key == f.Name() {
			return f
		}
	}

	g := t.resource.Graph()
	langs := append(g.Languages(), g.DefaultLang(), g.Lang())
	for _, f := range fields {
		if !f.IsTranslatable() {
			continue
		}
		for _, lang := range langs {
			if lang != "" && key == f.Name()+"_"+lang {
				return f
			}
		}
	}
	return nil
}

// String returns resource/id
func (t *Thing) String() string {
	return fmt.Sprintf("%s/%s", t.resource.Name(), t.id)
}

type thingKey struct {
	resource schema.ResourceID
	id       schema.ThingID
}

func (t *Thing) key() thingKey {
	return thingKey{resource: t.resource.ID(), id: t.id}
}

// union concatenates lists keeping the first occurrence of each thing
func union(lists ...[]*Thing) []*Thing {
	seen := make(map[thingKey]bool)
	out := make([]*Thing, 0)
	for _, list := range lists {
		for _, t := range list {
			k := t.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, t)
		}
	}
	return out
}
