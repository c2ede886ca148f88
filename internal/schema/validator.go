package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var schemaFS embed.FS

// Validator handles JSON schema validation
type Validator struct {
	topologySchema *jsonschema.Schema
	manifestSchema *jsonschema.Schema
}

// NewValidator compiles the embedded topology and manifest schemas
func NewValidator() (*Validator, error) {
	v := &Validator{}

	topologySchema, err := loadSchema("topology")
	if err != nil {
		return nil, fmt.Errorf("failed to load topology schema: %w", err)
	}
	v.topologySchema = topologySchema

	manifestSchema, err := loadSchema("manifest")
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest schema: %w", err)
	}
	v.manifestSchema = manifestSchema

	return v, nil
}

// ValidateTopology validates a topology document against the schema
func (v *Validator) ValidateTopology(doc interface{}) error {
	if v.topologySchema == nil {
		return fmt.Errorf("topology schema not loaded")
	}
	return validate(v.topologySchema, doc)
}

// ValidateManifest validates a publish manifest
func (v *Validator) ValidateManifest(doc interface{}) error {
	if v.manifestSchema == nil {
		return fmt.Errorf("manifest schema not loaded")
	}
	return validate(v.manifestSchema, doc)
}

// validate normalizes doc to the shapes encoding/json produces; YAML
// decoding yields ints and the compiled schema only accepts JSON numbers.
func validate(schema *jsonschema.Schema, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return schema.Validate(value)
}

// loadSchema compiles an embedded schema file (YAML)
func loadSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + name + ".schema.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	// Parse YAML to interface{} (supports both YAML and JSON)
	var schemaData interface{}
	if err := yaml.Unmarshal(data, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	// Convert to JSON for schema compiler
	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	schemaURI := fmt.Sprintf("apphost://schemas/%s.json", name)
	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == schemaURI {
			return io.NopCloser(strings.NewReader(string(jsonData))), nil
		}
		return nil, fmt.Errorf("external schema reference not supported: %s", url)
	}

	schema, err := compiler.Compile(schemaURI)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return schema, nil
}
