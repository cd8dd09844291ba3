package local

import (
	"encoding/json"
	"fmt"

	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/conduit-lang/pim/pkg/thing"
)

// Dataset seeds a store: rows of things plus links between them. Rows may embed
// relations directly; links also record the reciprocal side.
type Dataset struct {
	Things []thing.Row `json:"things"`
	Links  []Link      `json:"links,omitempty"`
}

// Link relates one thing to others through a relation field
type Link struct {
	Resource schema.Ref       `json:"resource"`
	Thing    schema.ThingID   `json:"thing"`
	Field    string           `json:"field"`
	To       []schema.ThingID `json:"to"`
}

// Load merges the dataset into a store
func (d Dataset) Load(store *thing.Store) error {
	if _, err := store.Merge(nil, d.Things); err != nil {
		return err
	}

	for _, l := range d.Links {
		parent, ok := store.Get(l.Resource, l.Thing)
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrThingNotFound, l.Resource, l.Thing)
		}
		f, err := parent.Resource().MustField(schema.RefName(l.Field))
		if err != nil {
			return err
		}
		target, err := f.RelatedResource()
		if err != nil {
			return err
		}

		children := make([]*thing.Thing, 0, len(l.To))
		for _, id := range l.To {
			child, ok := store.Get(target.Ref(), id)
			if !ok {
				return fmt.Errorf("%w: %s/%s", ErrThingNotFound, target.Name(), id)
			}
			children = append(children, child)
		}
		if err := store.Relate(parent, l.Field, children...); err != nil {
			return err
		}
	}
	return nil
}

// Open builds an engine from a JSON schema snapshot and an optional JSON dataset
func Open(schemaJSON, dataJSON []byte, config EngineConfig) (*Engine, error) {
	g, err := schema.Parse(schemaJSON)
	if err != nil {
		return nil, err
	}
	store := thing.NewStore(g)

	if len(dataJSON) > 0 {
		var d Dataset
		if err := json.Unmarshal(dataJSON, &d); err != nil {
			return nil, fmt.Errorf("failed to decode dataset: %w", err)
		}
		if err := d.Load(store); err != nil {
			return nil, err
		}
	}
	return NewEngineWithConfig(store, config), nil
}
