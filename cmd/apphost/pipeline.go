package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/sourceplane/apphost/internal/expand"
	"github.com/sourceplane/apphost/internal/lifecycle"
	"github.com/sourceplane/apphost/internal/loader"
	"github.com/sourceplane/apphost/internal/model"
	"github.com/sourceplane/apphost/internal/normalize"
	"github.com/sourceplane/apphost/internal/output"
	"github.com/sourceplane/apphost/internal/provision"
	"github.com/sourceplane/apphost/internal/render"
	"github.com/sourceplane/apphost/internal/resolve"
	"github.com/sourceplane/apphost/internal/topology"
)

// loadedTopology is a topology carried from the document to the runtime graph.
type loadedTopology struct {
	normalized *model.NormalizedTopology
	expander   *expand.Expander
	graph      *topology.Graph
}

func loadTopology() (*loadedTopology, error) {
	printer.Step("Loading topology %s...", cfg.Topology.Path)
	topo, err := loader.LoadTopology(cfg.Topology.Path)
	if err != nil {
		return nil, topologyError("failed to load topology", err)
	}

	printer.Step("Normalizing topology...")
	normalized, err := normalize.NormalizeTopology(topo)
	if err != nil {
		return nil, topologyError("failed to normalize topology", err)
	}

	printer.Step("Building resource graph...")
	expander := expand.NewExpander(normalized, expand.Sources{
		Settings:   cfg.Settings(),
		SecretsDir: cfg.Topology.SecretsDir,
		EnvPrefix:  cfg.Topology.EnvPrefix,
	})
	graph, err := expander.Expand()
	if err != nil {
		return nil, topologyError("failed to build resource graph", err)
	}

	logger.Debug("topology loaded",
		"resources", len(graph.Names()),
		"environments", len(graph.Environments()),
		"parameters", len(graph.Parameters()),
	)

	return &loadedTopology{normalized: normalized, expander: expander, graph: graph}, nil
}

func topologyError(summary string, err error) error {
	cliErr := &output.CLIError{
		Summary:  summary,
		Detail:   err.Error(),
		ExitCode: output.ExitTopology,
		Err:      err,
	}
	var cycle *topology.CycleError
	if errors.As(err, &cycle) {
		cliErr.Suggestion = "Remove one of the waitFor or references edges along the cycle"
	}
	return cliErr
}

// selection resolves --only patterns to a dependency-closed resource set.
// An empty pattern list selects every resource.
func (lt *loadedTopology) selection(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	resolver := expand.NewDependencyResolver(lt.graph)
	selected, err := resolver.Select(patterns)
	if err != nil {
		return nil, usageError("%v", err)
	}
	closed := resolver.ResolveResourceSet(selected)
	if added := len(closed) - len(selected); added > 0 {
		logger.Debug("selection extended with dependencies", "selected", len(selected), "added", added)
	}
	return expand.Sorted(closed), nil
}

func (lt *loadedTopology) commands() map[string][]string {
	out := make(map[string][]string)
	for name, res := range lt.normalized.Resources {
		if len(res.Command) > 0 {
			out[name] = slices.Clone(res.Command)
		}
	}
	return out
}

type publishOptions struct {
	resources   []string
	showSecrets bool
}

// publish runs one publish pass and renders its manifest. On failure the
// returned error is a CLIError and the manifest is nil, but the result is
// still returned for reporting.
func (lt *loadedTopology) publish(ctx context.Context, opts publishOptions) (*model.Manifest, *lifecycle.Result, error) {
	if cfg.Publish.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Publish.Timeout)
		defer cancel()
	}

	prov := provision.NewStatic(lt.expander.Domains(), cfg.DomainOverrides())

	var mu sync.Mutex
	progress := lifecycle.ObserverFunc(func(e lifecycle.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Type {
		case lifecycle.EventRunning:
			printer.Success("%s running", e.Resource)
		case lifecycle.EventFailed:
			printer.Warning("%s failed: %v", e.Resource, e.Err)
		}
	})

	publisher := lifecycle.NewPublisher(lt.graph,
		lifecycle.WithLogger(logger),
		lifecycle.WithObserver(progress),
		lifecycle.WithProvisioner(prov),
		lifecycle.WithResources(opts.resources...),
	)

	printer.Step("Publishing resources (run %s)...", publisher.RunID())
	result, err := publisher.Publish(ctx)
	if err != nil {
		return nil, result, publishError(err)
	}

	manifest := render.NewRenderer().RenderManifest(lt.graph, result, render.ManifestOptions{
		Name:        lt.normalized.Metadata.Name,
		ShowSecrets: opts.showSecrets,
		Commands:    lt.commands(),
	})
	return manifest, result, nil
}

func publishError(err error) error {
	cliErr := &output.CLIError{
		Summary:  "publish failed",
		Detail:   err.Error(),
		ExitCode: output.ExitPublish,
		Err:      err,
	}

	var unsupported *resolve.UnsupportedEnvironmentCombination
	switch {
	case errors.Is(err, context.Canceled):
		cliErr.Summary = "publish interrupted"
		cliErr.ExitCode = output.ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		cliErr.Summary = "publish timed out"
		cliErr.Suggestion = fmt.Sprintf("Raise publish.timeout (currently %s)", cfg.Publish.Timeout)
	case errors.As(err, &unsupported):
		cliErr.Suggestion = fmt.Sprintf("Place %s in a gateway-routed environment or move %s into %s's environment",
			unsupported.Target, unsupported.Resource, unsupported.Target)
	case errors.Is(err, topology.ErrUnknownName):
		cliErr.ExitCode = output.ExitUsageError
	}
	return cliErr
}

// environmentNames returns the declared environments in document order.
func (lt *loadedTopology) environmentNames() []string {
	if len(lt.normalized.EnvironmentOrder) > 0 {
		return slices.Clone(lt.normalized.EnvironmentOrder)
	}
	return slices.Sorted(maps.Keys(lt.normalized.Environments))
}
