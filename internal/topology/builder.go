package topology

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sourceplane/apphost/internal/expression"
)

// ResourceSpec declares a resource before the graph is built.
type ResourceSpec struct {
	Name        string
	Kind        ResourceKind
	Environment string
	Endpoints   []Endpoint
	// ConnectionString is a template parsed at Build, see expression.Parse.
	ConnectionString string
}

type reference struct {
	from, to string
}

// Builder accumulates topology declarations and produces an immutable Graph.
type Builder struct {
	parameters   map[string]*Parameter
	environments map[string]*Environment
	specs        map[string]ResourceSpec
	order        []string
	config       map[string]map[string]Value
	deps         map[string]map[string]bool
	references   []reference
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		parameters:   make(map[string]*Parameter),
		environments: make(map[string]*Environment),
		specs:        make(map[string]ResourceSpec),
		config:       make(map[string]map[string]Value),
		deps:         make(map[string]map[string]bool),
	}
}

// AddParameter declares a parameter. Parameter and resource names share a
// namespace because expressions refer to both by bare name.
func (b *Builder) AddParameter(p *Parameter) error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("parameter must have a name")
	}
	if _, exists := b.parameters[p.Name]; exists {
		return fmt.Errorf("parameter %s: %w", p.Name, ErrAlreadyExists)
	}
	if _, exists := b.specs[p.Name]; exists {
		return fmt.Errorf("parameter %s conflicts with resource of the same name: %w", p.Name, ErrAlreadyExists)
	}
	if p.Provider == nil {
		return fmt.Errorf("parameter %s has no value provider", p.Name)
	}
	b.parameters[p.Name] = p
	return nil
}

// AddEnvironment declares a compute environment.
func (b *Builder) AddEnvironment(env *Environment) error {
	if env == nil || env.Name == "" {
		return fmt.Errorf("environment must have a name")
	}
	if _, exists := b.environments[env.Name]; exists {
		return fmt.Errorf("environment %s: %w", env.Name, ErrAlreadyExists)
	}
	b.environments[env.Name] = env
	return nil
}

// AddResource declares a resource.
func (b *Builder) AddResource(spec ResourceSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("resource must have a name")
	}
	if _, exists := b.specs[spec.Name]; exists {
		return fmt.Errorf("resource %s: %w", spec.Name, ErrAlreadyExists)
	}
	if _, exists := b.parameters[spec.Name]; exists {
		return fmt.Errorf("resource %s conflicts with parameter of the same name: %w", spec.Name, ErrAlreadyExists)
	}
	for _, ep := range spec.Endpoints {
		if err := ValidateScheme(ep.Scheme); err != nil {
			return fmt.Errorf("resource %s: %w", spec.Name, err)
		}
	}
	spec.Endpoints = slices.Clone(spec.Endpoints)
	b.specs[spec.Name] = spec
	b.order = append(b.order, spec.Name)
	b.config[spec.Name] = make(map[string]Value)
	b.deps[spec.Name] = make(map[string]bool)
	return nil
}

// AddDependency declares that resource must wait for dependency to be Running.
func (b *Builder) AddDependency(resource, dependency string) error {
	if _, ok := b.specs[resource]; !ok {
		return fmt.Errorf("resource %s: %w", resource, ErrUnknownName)
	}
	b.deps[resource][dependency] = true
	return nil
}

// AddConfigEntry sets a config entry on resource. Later entries for the same
// key replace earlier ones.
func (b *Builder) AddConfigEntry(resource, key string, value Value) error {
	if _, ok := b.specs[resource]; !ok {
		return fmt.Errorf("resource %s: %w", resource, ErrUnknownName)
	}
	if key == "" {
		return fmt.Errorf("resource %s: config entry must have a name", resource)
	}
	b.config[resource][key] = value
	return nil
}

// AddReference injects target's connection information into resource's
// config and adds a wait-for edge. Projects contribute one service key per
// endpoint; connection endpoints contribute their connection string.
func (b *Builder) AddReference(resource, target string) error {
	if _, ok := b.specs[resource]; !ok {
		return fmt.Errorf("resource %s: %w", resource, ErrUnknownName)
	}
	b.references = append(b.references, reference{from: resource, to: target})
	return nil
}

// Build validates all declarations and returns the immutable graph.
func (b *Builder) Build() (*Graph, error) {
	resources := make(map[string]*Resource, len(b.specs))
	for _, name := range b.order {
		spec := b.specs[name]
		r := &Resource{
			Name:      spec.Name,
			Kind:      spec.Kind,
			Endpoints: spec.Endpoints,
			config:    maps.Clone(b.config[name]),
		}
		if spec.Environment != "" {
			env, ok := b.environments[spec.Environment]
			if !ok {
				return nil, fmt.Errorf("resource %s: environment %s: %w", name, spec.Environment, ErrUnknownName)
			}
			r.Environment = env
		}
		resources[name] = r
	}

	deps := make(map[string]map[string]bool, len(b.deps))
	for name, set := range b.deps {
		deps[name] = maps.Clone(set)
	}

	for _, ref := range b.references {
		if err := b.expandReference(resources[ref.from], resources[ref.to], ref.to); err != nil {
			return nil, err
		}
		deps[ref.from][ref.to] = true
	}

	lookup := func(name string) (expression.FragmentKind, bool) {
		if _, ok := b.parameters[name]; ok {
			return expression.FragmentParameter, true
		}
		if _, ok := resources[name]; ok {
			return expression.FragmentResource, true
		}
		return expression.FragmentLiteral, false
	}

	for _, name := range b.order {
		r := resources[name]
		if tmpl := b.specs[name].ConnectionString; tmpl != "" {
			expr, err := expression.Parse(tmpl, lookup)
			if err != nil {
				return nil, fmt.Errorf("resource %s connection string: %w", name, err)
			}
			if err := b.checkExpressionTargets(expr); err != nil {
				return nil, fmt.Errorf("resource %s connection string: %w", name, err)
			}
			r.ConnectionString = expr
			for _, target := range expr.Resources() {
				deps[name][target] = true
			}
		}

		for key, value := range r.config {
			resolved, err := b.checkValue(resources, lookup, value)
			if err != nil {
				return nil, fmt.Errorf("resource %s config entry %s: %w", name, key, err)
			}
			r.config[key] = resolved
			for _, target := range valueTargets(resolved) {
				deps[name][target] = true
			}
		}
	}

	for name, set := range deps {
		for dep := range set {
			if _, ok := resources[dep]; !ok {
				return nil, fmt.Errorf("resource %s depends on %s: %w", name, dep, ErrUnknownName)
			}
		}
		resources[name].DependsOn = slices.Sorted(maps.Keys(set))
	}

	return newGraph(maps.Clone(b.parameters), maps.Clone(b.environments), resources)
}

func (b *Builder) expandReference(from, to *Resource, target string) error {
	if to == nil {
		return fmt.Errorf("resource %s references %s: %w", from.Name, target, ErrUnknownName)
	}
	if from.Name == to.Name {
		return fmt.Errorf("resource %s references itself: %w", from.Name, ErrInvalidReference)
	}

	switch to.Kind {
	case ResourceProject:
		if len(to.Endpoints) == 0 {
			return fmt.Errorf("resource %s references %s which exposes no endpoints: %w", from.Name, to.Name, ErrInvalidReference)
		}
		ordinals := make(map[string]int)
		for _, ep := range to.Endpoints {
			key := ServiceKey{Resource: to.Name, Scheme: ep.Scheme, Index: ordinals[ep.Scheme]}.String()
			ordinals[ep.Scheme]++
			if _, declared := from.config[key]; !declared {
				from.config[key] = EndpointRef(to.Name, ep.Scheme)
			}
		}
	case ResourceConnectionEndpoint:
		if b.specs[to.Name].ConnectionString == "" {
			return fmt.Errorf("resource %s references %s which has no connection string: %w", from.Name, to.Name, ErrInvalidReference)
		}
		key := ConnectionStringKey(to.Name)
		if _, declared := from.config[key]; !declared {
			from.config[key] = ExpressionOf(expression.New(expression.Res(to.Name)))
		}
	}
	return nil
}

func (b *Builder) checkValue(resources map[string]*Resource, lookup expression.Lookup, v Value) (Value, error) {
	switch v.Kind {
	case ValueLiteral:
		return v, nil
	case ValueParameter:
		if _, ok := b.parameters[v.Parameter]; !ok {
			return v, fmt.Errorf("parameter %s: %w", v.Parameter, ErrUnknownName)
		}
		return v, nil
	case ValueEndpoint:
		target, ok := resources[v.Target]
		if !ok {
			return v, fmt.Errorf("endpoint target %s: %w", v.Target, ErrUnknownName)
		}
		if !slices.ContainsFunc(target.Endpoints, func(ep Endpoint) bool { return ep.Scheme == v.Scheme }) {
			return v, fmt.Errorf("resource %s exposes no %s endpoint: %w", v.Target, v.Scheme, ErrInvalidReference)
		}
		return v, nil
	case ValueExpression:
		if v.Expression == nil {
			expr, err := expression.Parse(v.Text, lookup)
			if err != nil {
				return v, err
			}
			v.Expression = expr
		}
		return v, b.checkExpressionTargets(v.Expression)
	default:
		return v, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// checkExpressionTargets rejects resource fragments pointing at resources
// that publish no connection string.
func (b *Builder) checkExpressionTargets(expr *expression.Expression) error {
	for _, name := range expr.Resources() {
		spec, ok := b.specs[name]
		if !ok {
			return fmt.Errorf("resource %s: %w", name, ErrUnknownName)
		}
		if spec.ConnectionString == "" {
			return fmt.Errorf("resource %s has no connection string: %w", name, ErrInvalidReference)
		}
	}
	return nil
}

// valueTargets returns the resources a value cannot be evaluated without.
func valueTargets(v Value) []string {
	switch v.Kind {
	case ValueEndpoint:
		return []string{v.Target}
	case ValueExpression:
		if v.Expression != nil {
			return v.Expression.Resources()
		}
	}
	return nil
}
