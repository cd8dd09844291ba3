package schema

import (
	"encoding/json"
	"fmt"
)

// FieldType names the value type of a field
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeTextarea FieldType = "textarea"
	TypeHTML     FieldType = "html"
	TypeEmail    FieldType = "email"
	TypeURL      FieldType = "url"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeDate     FieldType = "date"
	TypeSelect   FieldType = "select"
	TypeFile     FieldType = "file"
	TypeRelation FieldType = "relation"
)

// RelationType is the traversal direction of a relation field
type RelationType string

const (
	// RelSource is an outgoing relation
	RelSource RelationType = "src"
	// RelDestination is an incoming relation
	RelDestination RelationType = "dst"
	// RelSync is a relation kept in sync from both sides
	RelSync RelationType = "sync"
)

// Translations maps a language code to a translated string
type Translations map[string]string

// Snapshot is the serialized form of a schema as returned by the "schema" endpoint
type Snapshot struct {
	ID          SchemaID      `json:"id"`
	Name        string        `json:"name"`
	DefaultLang string        `json:"default_lang"`
	Languages   []string      `json:"languages,omitempty"`
	Resources   []ResourceDef `json:"resources"`
}

// ResourceDef is the serialized form of a resource
type ResourceDef struct {
	ID             ResourceID   `json:"id"`
	Name           string       `json:"name"`
	Label          Translations `json:"label,omitempty"`
	Type           string       `json:"type,omitempty"`
	IsMultiple     bool         `json:"is_multiple"`
	IsTranslatable bool         `json:"is_translatable"`
	Fields         []FieldDef   `json:"fields"`
}

// FieldDef is the serialized form of a field
type FieldDef struct {
	ID             FieldID        `json:"id"`
	Name           string         `json:"name"`
	ResourceID     ResourceID     `json:"resource_id"`
	Type           FieldType      `json:"type"`
	Label          Translations   `json:"label,omitempty"`
	Description    Translations   `json:"description,omitempty"`
	IsTranslatable bool           `json:"is_translatable"`
	IsMultiple     bool           `json:"is_multiple"`
	IsUnique       bool           `json:"is_unique"`
	Unit           string         `json:"unit,omitempty"`
	Order          int            `json:"order"`
	Opts           map[string]any `json:"opts,omitempty"`
	RelResID       *ResourceID    `json:"rel_res_id,omitempty"`
	RelFieldID     *FieldID       `json:"rel_field_id,omitempty"`
	RelType        *RelationType  `json:"rel_type,omitempty"`
}

// Parse decodes a JSON snapshot and builds its graph
func Parse(data []byte) (*Graph, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode schema snapshot: %w", err)
	}
	return NewGraph(snap)
}
