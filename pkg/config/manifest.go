package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/pgsyncd/pkg/types"
)

// Manifest lists several sync documents to run together under one
// daemon process, mirroring the teacher's YAML resource-file idiom.
type Manifest struct {
	Syncs []ManifestEntry `yaml:"syncs"`
}

// ManifestEntry names one sync document by path, with an optional
// display name that appears in the error returned when that document
// fails to load.
type ManifestEntry struct {
	Name   string `yaml:"name,omitempty"`
	Config string `yaml:"config"`
}

// LoadManifest reads a YAML cluster manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading manifest %q: %v", types.ErrSchemaValidation, path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest %q: %v", types.ErrSchemaValidation, path, err)
	}
	if len(m.Syncs) == 0 {
		return nil, fmt.Errorf("%w: manifest %q declares no syncs", types.ErrSchemaValidation, path)
	}
	for i, entry := range m.Syncs {
		if entry.Config == "" {
			return nil, fmt.Errorf("%w: manifest %q entry %d is missing \"config\"", types.ErrSchemaValidation, path, i)
		}
	}
	return &m, nil
}

// Documents loads every sync document the manifest references.
func (m *Manifest) Documents() ([]*Document, error) {
	docs := make([]*Document, 0, len(m.Syncs))
	for _, entry := range m.Syncs {
		doc, err := Load(entry.Config)
		if err != nil {
			return nil, fmt.Errorf("loading %q from manifest entry %q: %w", entry.Config, entry.Name, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
