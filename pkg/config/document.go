package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// Document is the JSON shape of one sync, per spec.md §6.
type Document struct {
	Database string     `json:"database"`
	Index    string     `json:"index,omitempty"`
	Pipeline string     `json:"pipeline,omitempty"`
	Plugins  []string   `json:"plugins,omitempty"`
	Nodes    *tree.Spec `json:"nodes"`

	// Setting and Mapping(s) are passed through verbatim to the search
	// engine at index-creation time; pgsyncd does not interpret their
	// contents beyond checking they are present when a caller asks for
	// them (index creation is an operator/bootstrap-time concern, not
	// part of the steady-state sync loop this repository drives).
	Setting  map[string]any `json:"setting,omitempty"`
	Mapping  map[string]any `json:"mapping,omitempty"`
	Mappings map[string]any `json:"mappings,omitempty"`

	Routing string `json:"routing,omitempty"`
}

// Load reads and validates a sync document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading sync document %q: %v", types.ErrSchemaValidation, path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing sync document %q: %v", types.ErrSchemaValidation, path, err)
	}
	doc.applyDefaults()
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) applyDefaults() {
	if d.Index == "" {
		d.Index = d.Database
	}
}

func (d *Document) validate() error {
	if d.Database == "" {
		return fmt.Errorf("%w: sync document is missing \"database\"", types.ErrSchemaValidation)
	}
	if d.Nodes == nil {
		return fmt.Errorf("%w: sync document is missing \"nodes\"", types.ErrSchemaValidation)
	}
	return nil
}

// SyncName derives the stable name identifying this sync, per spec.md
// §3.
func (d *Document) SyncName() string {
	return types.SyncName(d.Database, d.Index)
}

// BuildTree constructs the tree model this document's Nodes declares,
// validating acyclicity and relationship shape at construction.
func (d *Document) BuildTree() (*tree.Tree, error) {
	return tree.Build(d.Nodes)
}
