// Package provision settles each environment's default domain before
// cross-environment references are resolved.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sourceplane/apphost/internal/topology"
)

// ErrNoDomain is returned when a gateway-routed environment has no domain
// source.
var ErrNoDomain = errors.New("no default domain configured")

// Error reports that an environment could not be provisioned.
type Error struct {
	Environment string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to provision environment %s: %v", e.Environment, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ParameterSource resolves parameter values for domain parameters.
type ParameterSource interface {
	ParameterValue(ctx context.Context, name string) (string, error)
}

// Provisioner produces the default domain of an environment.
type Provisioner interface {
	Provision(ctx context.Context, env *topology.Environment, params ParameterSource) (string, error)
}

// Domain is the declared domain source of an environment: a fixed value or
// the name of a parameter holding it.
type Domain struct {
	Value     string
	Parameter string
}

// Static provisions domains from configuration overrides and the topology
// declaration, in that order.
type Static struct {
	declared  map[string]Domain
	overrides map[string]string
}

// NewStatic creates a provisioner over declared domains, keyed by
// environment name. Overrides take precedence over declarations.
func NewStatic(declared map[string]Domain, overrides map[string]string) *Static {
	return &Static{declared: declared, overrides: overrides}
}

func (s *Static) Provision(ctx context.Context, env *topology.Environment, params ParameterSource) (string, error) {
	domain, err := s.domain(ctx, env, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &Error{Environment: env.Name, Err: err}
	}
	return domain, nil
}

func (s *Static) domain(ctx context.Context, env *topology.Environment, params ParameterSource) (string, error) {
	if override, ok := s.overrides[env.Name]; ok && override != "" {
		return NormalizeDomain(override)
	}

	decl := s.declared[env.Name]
	switch {
	case decl.Value != "":
		return NormalizeDomain(decl.Value)
	case decl.Parameter != "":
		if params == nil {
			return "", fmt.Errorf("domain parameter %s: no parameter source", decl.Parameter)
		}
		val, err := params.ParameterValue(ctx, decl.Parameter)
		if err != nil {
			return "", fmt.Errorf("domain parameter %s: %w", decl.Parameter, err)
		}
		return NormalizeDomain(val)
	case env.Kind == topology.KindGatewayRouted:
		return "", ErrNoDomain
	default:
		// Domain-routed siblings reach each other by bare name.
		return "", nil
	}
}

// NormalizeDomain trims whitespace and surrounding dots and rejects values
// that are not a bare host name.
func NormalizeDomain(domain string) (string, error) {
	d := strings.Trim(strings.TrimSpace(domain), ".")
	if d == "" {
		return "", ErrNoDomain
	}
	if strings.Contains(d, "://") || strings.ContainsAny(d, "/ :@") {
		return "", fmt.Errorf("invalid domain %q", domain)
	}
	return strings.ToLower(d), nil
}
