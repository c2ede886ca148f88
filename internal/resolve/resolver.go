// Package resolve rewrites endpoint references in a resource's config
// entries into environment-correct URLs.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/sourceplane/apphost/internal/topology"
)

// Targets looks up the resources endpoint references point at.
// *topology.Graph satisfies it.
type Targets interface {
	Resource(name string) (*topology.Resource, bool)
}

// Resolver rewrites cross-environment endpoint references.
type Resolver struct {
	targets Targets
	logger  *slog.Logger
}

// NewResolver creates a resolver over targets. A nil logger discards output.
func NewResolver(targets Targets, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{targets: targets, logger: logger}
}

// Resolve returns a copy of entries with every cross-environment endpoint
// reference replaced by a literal {scheme}://{target}.{domain} URL. Entries
// that are not endpoint references and references between resources sharing
// an environment are returned untouched. Two resources without an
// environment count as sharing one. A service key that disagrees with its
// reference is left untouched when the target shares the source's
// environment and fails with *MismatchedServiceKey otherwise. Resolve blocks
// until each target environment's domain is provisioned. Any failing entry
// fails the whole map.
func (r *Resolver) Resolve(ctx context.Context, source *topology.Resource, entries map[string]topology.Value) (map[string]topology.Value, error) {
	out := make(map[string]topology.Value, len(entries))
	for _, key := range slices.Sorted(maps.Keys(entries)) {
		value := entries[key]
		resolved, err := r.resolveEntry(ctx, source, key, value)
		if err != nil {
			return nil, err
		}
		out[key] = resolved
	}
	return out, nil
}

func (r *Resolver) resolveEntry(ctx context.Context, source *topology.Resource, key string, value topology.Value) (topology.Value, error) {
	if key == "" || value.Kind != topology.ValueEndpoint {
		return value, nil
	}

	target, ok := r.targets.Resource(value.Target)
	if !ok {
		return value, fmt.Errorf("resource %s: config entry %s: endpoint target %s: %w",
			source.Name, key, value.Target, topology.ErrUnknownName)
	}
	local := source.Environment == target.Environment

	if sk, ok := topology.ParseServiceKey(key); ok && (sk.Resource != value.Target || sk.Scheme != value.Scheme) {
		if !local {
			return value, &MismatchedServiceKey{
				Resource: source.Name,
				Key:      key,
				Target:   value.Target,
				Scheme:   value.Scheme,
			}
		}
		r.logger.Debug("service key does not match reference, leaving untouched",
			"resource", source.Name, "key", key, "target", value.Target, "scheme", value.Scheme)
		return value, nil
	}

	if local {
		return value, nil
	}

	env := target.Environment
	if env == nil || env.Kind != topology.KindGatewayRouted {
		unsupported := &UnsupportedEnvironmentCombination{
			Resource: source.Name,
			Key:      key,
			Target:   target.Name,
		}
		if env != nil {
			unsupported.TargetEnvironment = env.Name
			unsupported.TargetKind = env.Kind
		}
		return value, unsupported
	}

	domain, err := env.AwaitDomain(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return value, ctx.Err()
		}
		return value, fmt.Errorf("resource %s: config entry %s: environment %s has no default domain: %w",
			source.Name, key, env.Name, err)
	}

	url := fmt.Sprintf("%s://%s.%s", value.Scheme, target.Name, domain)
	r.logger.Debug("rewrote endpoint reference",
		"resource", source.Name, "key", key, "environment", env.Name, "url", url)
	return topology.Literal(url), nil
}
