package thing

import "github.com/conduit-lang/pim/pkg/schema"

// Row is the raw JSON form of a thing as exchanged with a backend
type Row struct {
	ID         schema.ThingID      `json:"id"`
	ResourceID schema.ResourceID   `json:"resource_id,omitempty"`
	Label      string              `json:"label,omitempty"`
	Labels     schema.Translations `json:"labels,omitempty"`
	Fields     map[string]any      `json:"fields"`
	Relations  map[string][]Row    `json:"relations,omitempty"`
}
