// Package topology holds the runtime deployment model: parameters, compute
// environments and resources, joined into an immutable dependency graph.
package topology

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/sourceplane/apphost/internal/async"
	"github.com/sourceplane/apphost/internal/expression"
)

// ValueProvider produces a parameter value on demand. It may perform I/O.
type ValueProvider func(ctx context.Context) (string, error)

// Parameter is a named, possibly secret, lazily resolved scalar.
type Parameter struct {
	Name        string
	Secret      bool
	Description string
	Provider    ValueProvider
}

// LogValue keeps parameters out of logs except for their name and secrecy.
func (p *Parameter) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", p.Name),
		slog.Bool("secret", p.Secret),
	)
}

// EnvironmentKind is the routing model of a compute environment.
type EnvironmentKind int

const (
	// KindUnsupported covers every kind without a resolution policy.
	KindUnsupported EnvironmentKind = iota
	// KindDomainRouted environments serve siblings by their bare local name.
	KindDomainRouted
	// KindGatewayRouted environments expose services under a shared
	// environment-wide domain.
	KindGatewayRouted
)

// ParseEnvironmentKind maps a declared kind to EnvironmentKind. Unknown
// values map to KindUnsupported.
func ParseEnvironmentKind(s string) EnvironmentKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "domain-routed", "domainrouted", "app-service":
		return KindDomainRouted
	case "gateway-routed", "gatewayrouted", "container-apps":
		return KindGatewayRouted
	default:
		return KindUnsupported
	}
}

func (k EnvironmentKind) String() string {
	switch k {
	case KindDomainRouted:
		return "domain-routed"
	case KindGatewayRouted:
		return "gateway-routed"
	default:
		return "unsupported"
	}
}

// Environment is a named compute target. Its default domain becomes
// available only after the environment is provisioned.
type Environment struct {
	Name string
	Kind EnvironmentKind

	domain *async.Future[string]
}

// NewEnvironment creates an environment whose domain is not yet provisioned.
func NewEnvironment(name string, kind EnvironmentKind) *Environment {
	return &Environment{
		Name:   name,
		Kind:   kind,
		domain: async.NewFuture[string](),
	}
}

// SetDomain records the provisioned default domain.
func (e *Environment) SetDomain(domain string) error {
	if err := e.domain.Resolve(domain); err != nil {
		return fmt.Errorf("environment %s: %w", e.Name, err)
	}
	return nil
}

// FailDomain records that provisioning could not produce a domain.
func (e *Environment) FailDomain(err error) error {
	if rerr := e.domain.Reject(err); rerr != nil {
		return fmt.Errorf("environment %s: %w", e.Name, rerr)
	}
	return nil
}

// AwaitDomain blocks until the environment is provisioned.
func (e *Environment) AwaitDomain(ctx context.Context) (string, error) {
	domain, err := e.domain.Await(ctx)
	if err != nil {
		return "", err
	}
	return domain, nil
}

// Provisioned reports whether the default domain has been settled.
func (e *Environment) Provisioned() bool {
	return e.domain.Settled()
}

// ResourceKind distinguishes deployable projects from logical endpoints.
type ResourceKind int

const (
	ResourceProject ResourceKind = iota
	ResourceConnectionEndpoint
)

// ParseResourceKind maps a declared resource kind.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "project":
		return ResourceProject, nil
	case "connection-endpoint", "connectionendpoint", "connection-string":
		return ResourceConnectionEndpoint, nil
	default:
		return 0, fmt.Errorf("unknown resource kind %q", s)
	}
}

func (k ResourceKind) String() string {
	if k == ResourceConnectionEndpoint {
		return "connection-endpoint"
	}
	return "project"
}

// Endpoint is a network binding exposed by a project.
type Endpoint struct {
	Scheme   string
	Port     int
	External bool
}

// Resource is a deployable unit or logical connection endpoint. Resources in
// a built Graph are read-only; evaluation works on copies of Config.
type Resource struct {
	Name        string
	Kind        ResourceKind
	Environment *Environment
	Endpoints   []Endpoint
	// DependsOn lists wait-for edges, sorted, including implicit edges
	// created by references.
	DependsOn []string
	// ConnectionString is the resource's published value, if any.
	ConnectionString *expression.Expression

	config map[string]Value
}

// Config returns a snapshot of the resource's declared config entries.
func (r *Resource) Config() map[string]Value {
	return maps.Clone(r.config)
}

// EnvironmentName returns the assigned environment name, or "".
func (r *Resource) EnvironmentName() string {
	if r.Environment == nil {
		return ""
	}
	return r.Environment.Name
}

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	ValueLiteral ValueKind = iota
	ValueEndpoint
	ValueParameter
	ValueExpression
)

func (k ValueKind) String() string {
	switch k {
	case ValueLiteral:
		return "literal"
	case ValueEndpoint:
		return "endpoint"
	case ValueParameter:
		return "parameter"
	case ValueExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// Value is a config entry value: a literal, a reference to another
// resource's endpoint, a parameter reference, or an expression.
type Value struct {
	Kind ValueKind

	Text string // ValueLiteral, or the unparsed template of ValueExpression

	Target string // ValueEndpoint
	Scheme string // ValueEndpoint

	Parameter string // ValueParameter

	Expression *expression.Expression // ValueExpression, set by Build
}

// Literal returns a literal value.
func Literal(s string) Value { return Value{Kind: ValueLiteral, Text: s} }

// EndpointRef returns a reference to target's endpoint with scheme.
func EndpointRef(target, scheme string) Value {
	return Value{Kind: ValueEndpoint, Target: target, Scheme: scheme}
}

// ParameterRef returns a reference to a parameter.
func ParameterRef(name string) Value { return Value{Kind: ValueParameter, Parameter: name} }

// Template returns an expression value parsed from template at build time.
func Template(template string) Value { return Value{Kind: ValueExpression, Text: template} }

// ExpressionOf wraps an already built expression.
func ExpressionOf(expr *expression.Expression) Value {
	return Value{Kind: ValueExpression, Text: expr.String(), Expression: expr}
}

// IsLiteral reports whether the value needs no further resolution.
func (v Value) IsLiteral() bool { return v.Kind == ValueLiteral }

func (v Value) String() string {
	switch v.Kind {
	case ValueLiteral:
		return v.Text
	case ValueEndpoint:
		return fmt.Sprintf("endpoint(%s, %s)", v.Target, v.Scheme)
	case ValueParameter:
		return fmt.Sprintf("parameter(%s)", v.Parameter)
	case ValueExpression:
		return fmt.Sprintf("expression(%s)", v.Text)
	default:
		return "<invalid>"
	}
}
