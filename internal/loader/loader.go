package loader

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sourceplane/apphost/internal/model"
	"github.com/sourceplane/apphost/internal/schema"
)

var validator = sync.OnceValues(schema.NewValidator)

// LoadTopology loads, validates and parses a topology YAML file
func LoadTopology(path string) (*model.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	topology, err := ParseTopology(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return topology, nil
}

// ParseTopology validates raw YAML against the topology schema and decodes it
func ParseTopology(data []byte) (*model.Topology, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse topology YAML: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("topology document is empty")
	}

	v, err := validator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateTopology(raw); err != nil {
		return nil, fmt.Errorf("topology failed schema validation: %w", err)
	}

	var topology model.Topology
	if err := yaml.Unmarshal(data, &topology); err != nil {
		return nil, fmt.Errorf("failed to decode topology: %w", err)
	}

	return &topology, nil
}

// LoadManifest loads a manifest written by publish. JSON and YAML are both
// accepted since JSON is valid YAML.
func LoadManifest(path string) (*model.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	v, err := validator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateManifest(raw); err != nil {
		return nil, fmt.Errorf("manifest %s failed schema validation: %w", path, err)
	}

	var manifest model.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	return &manifest, nil
}
