package expand

import (
	"fmt"

	"github.com/sourceplane/apphost/internal/expression"
	"github.com/sourceplane/apphost/internal/model"
	"github.com/sourceplane/apphost/internal/params"
	"github.com/sourceplane/apphost/internal/provision"
	"github.com/sourceplane/apphost/internal/topology"
)

// Sources configures where parameter values are read from
type Sources struct {
	// Settings backs the config lookup of every parameter (parameters.<name>).
	Settings   params.Settings
	SecretsDir string
	EnvPrefix  string
}

// Expander turns a normalized topology into the runtime graph
type Expander struct {
	normalized *model.NormalizedTopology
	sources    Sources
}

// NewExpander creates a new expander
func NewExpander(normalized *model.NormalizedTopology, sources Sources) *Expander {
	return &Expander{
		normalized: normalized,
		sources:    sources,
	}
}

// Expand declares every parameter, environment and resource on a builder
// and returns the built graph.
func (e *Expander) Expand() (*topology.Graph, error) {
	b := topology.NewBuilder()

	for _, name := range e.normalized.ParameterOrder {
		if err := b.AddParameter(e.parameter(e.normalized.Parameters[name])); err != nil {
			return nil, err
		}
	}

	for _, name := range e.normalized.EnvironmentOrder {
		env := e.normalized.Environments[name]
		if err := b.AddEnvironment(topology.NewEnvironment(env.Name, topology.ParseEnvironmentKind(env.Kind))); err != nil {
			return nil, err
		}
	}

	for _, name := range e.normalized.ResourceOrder {
		res := e.normalized.Resources[name]
		kind, err := topology.ParseResourceKind(res.Kind)
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", name, err)
		}
		spec := topology.ResourceSpec{
			Name:             res.Name,
			Kind:             kind,
			Environment:      res.Environment,
			ConnectionString: res.ConnectionString,
		}
		for _, ep := range res.Endpoints {
			spec.Endpoints = append(spec.Endpoints, topology.Endpoint{Scheme: ep.Scheme, Port: ep.Port, External: ep.External})
		}
		if err := b.AddResource(spec); err != nil {
			return nil, err
		}
	}

	for _, name := range e.normalized.ResourceOrder {
		res := e.normalized.Resources[name]
		for key, value := range res.Env {
			if err := b.AddConfigEntry(name, key, configValue(value)); err != nil {
				return nil, err
			}
		}
		for _, target := range res.References {
			if err := b.AddReference(name, target); err != nil {
				return nil, err
			}
		}
		for _, dep := range res.WaitFor {
			if err := b.AddDependency(name, dep); err != nil {
				return nil, err
			}
		}
	}

	graph, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build topology: %w", err)
	}
	return graph, nil
}

// Domains returns the declared domain source of every environment
func (e *Expander) Domains() map[string]provision.Domain {
	domains := make(map[string]provision.Domain, len(e.normalized.Environments))
	for name, env := range e.normalized.Environments {
		domains[name] = provision.Domain{Value: env.DefaultDomain, Parameter: env.DomainParameter}
	}
	return domains
}

// parameter wires the declared sources of p into a provider chain:
// config, environment variable, secret file, inline value.
func (e *Expander) parameter(p model.Parameter) *topology.Parameter {
	var lookups []params.Lookup

	if e.sources.Settings != nil {
		key := p.Config
		if key == "" {
			key = p.Name
		}
		lookups = append(lookups, params.Lookup{Provider: params.NewConfigProvider(e.sources.Settings), Key: key})
	}
	if p.Env != "" {
		lookups = append(lookups, params.Lookup{Provider: params.NewEnvProvider(e.sources.EnvPrefix), Key: p.Env})
	}
	if p.File != "" && e.sources.SecretsDir != "" {
		lookups = append(lookups, params.Lookup{Provider: params.NewFileProvider(e.sources.SecretsDir), Key: p.File})
	}
	if p.Value != nil {
		literal := params.NewLiteralProvider(map[string]string{p.Name: *p.Value})
		lookups = append(lookups, params.Lookup{Provider: literal, Key: p.Name})
	}

	return &topology.Parameter{
		Name:        p.Name,
		Secret:      p.Secret,
		Description: p.Description,
		Provider:    params.Chain(p.Name, lookups...),
	}
}

func configValue(v model.ConfigValue) topology.Value {
	switch {
	case v.Parameter != "":
		return topology.ParameterRef(v.Parameter)
	case v.Endpoint != "":
		return topology.EndpointRef(v.Endpoint, v.Scheme)
	case v.ConnectionString != "":
		return topology.ExpressionOf(expression.New(expression.Res(v.ConnectionString)))
	case v.Expression != "":
		return topology.Template(v.Expression)
	default:
		return topology.Literal(v.Literal)
	}
}
