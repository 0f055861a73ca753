package tree

// Spec is the JSON shape of one node in a sync config's "nodes" tree.
// It mirrors the nested structure a sync document declares: a root
// node's Spec has no Relationship; every descendant's Spec must declare
// one.
type Spec struct {
	Table       string            `json:"table"`
	Schema      string            `json:"schema,omitempty"`
	PrimaryKeys []string          `json:"primary_keys,omitempty"`
	Columns     []string          `json:"columns,omitempty"`
	BaseTables  []string          `json:"base_tables,omitempty"`
	Relationship *RelationshipSpec `json:"relationship,omitempty"`
	Children    []*Spec           `json:"children,omitempty"`
}

// RelationshipSpec is the JSON shape of Relationship.
type RelationshipSpec struct {
	ForeignKey ForeignKeySpec `json:"foreign_key"`
	Throughs   []ThroughSpec  `json:"throughs,omitempty"`
}

// ForeignKeySpec is the JSON shape of ForeignKey.
type ForeignKeySpec struct {
	Parent []string `json:"parent"`
	Child  []string `json:"child"`
}

// ThroughSpec is the JSON shape of Through.
type ThroughSpec struct {
	Table   string   `json:"table"`
	Schema  string   `json:"schema,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

const defaultSchema = "public"

func (s *Spec) schemaOrDefault() string {
	if s.Schema == "" {
		return defaultSchema
	}
	return s.Schema
}
