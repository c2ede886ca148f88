package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ConfigValue is one env entry of a resource. Exactly one form is set: a
// scalar literal, or a mapping with parameter, endpoint (and scheme),
// connectionString or expression.
type ConfigValue struct {
	Literal          string `yaml:"-" json:"literal,omitempty"`
	Parameter        string `yaml:"parameter,omitempty" json:"parameter,omitempty"`
	Endpoint         string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Scheme           string `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	ConnectionString string `yaml:"connectionString,omitempty" json:"connectionString,omitempty"`
	Expression       string `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// LiteralValue returns a ConfigValue holding s.
func LiteralValue(s string) ConfigValue {
	return ConfigValue{Literal: s}
}

// UnmarshalYAML decodes either a scalar or a single-form mapping.
func (v *ConfigValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*v = ConfigValue{Literal: s}
		return nil
	case yaml.MappingNode:
		type plain ConfigValue
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*v = ConfigValue(p)
		if n := v.forms(); n != 1 {
			return fmt.Errorf("line %d: env value must set exactly one of parameter, endpoint, connectionString, expression (got %d)", node.Line, n)
		}
		if v.Scheme != "" && v.Endpoint == "" {
			return fmt.Errorf("line %d: scheme is only valid with endpoint", node.Line)
		}
		return nil
	default:
		return fmt.Errorf("line %d: env value must be a string or a mapping", node.Line)
	}
}

// MarshalYAML writes literals back as plain scalars.
func (v ConfigValue) MarshalYAML() (interface{}, error) {
	if v.forms() == 0 {
		return v.Literal, nil
	}
	type plain ConfigValue
	return plain(v), nil
}

func (v ConfigValue) forms() int {
	n := 0
	for _, s := range []string{v.Parameter, v.Endpoint, v.ConnectionString, v.Expression} {
		if s != "" {
			n++
		}
	}
	return n
}

// IsLiteral reports whether v is a plain string.
func (v ConfigValue) IsLiteral() bool {
	return v.forms() == 0
}
