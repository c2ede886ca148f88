package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sourceplane/apphost/internal/async"
	"github.com/sourceplane/apphost/internal/expression"
	"github.com/sourceplane/apphost/internal/params"
	"github.com/sourceplane/apphost/internal/provision"
	"github.com/sourceplane/apphost/internal/resolve"
	"github.com/sourceplane/apphost/internal/topology"
)

// Publisher evaluates a topology: it provisions environments, resolves
// endpoint references, evaluates parameters and connection strings, and
// moves every resource to Running or Failed.
type Publisher struct {
	graph       *topology.Graph
	provisioner provision.Provisioner
	observers   []Observer
	logger      *slog.Logger
	runID       string
	selected    []string
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for lifecycle and root cause reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithObserver registers an observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(p *Publisher) { p.observers = append(p.observers, o) }
}

// WithProvisioner sets the provisioner that settles environment domains.
// Environments already provisioned are left alone. Without one, domains come
// only from the environments' own declarations and a gateway environment
// with none fails with provision.ErrNoDomain.
func WithProvisioner(prov provision.Provisioner) Option {
	return func(p *Publisher) { p.provisioner = prov }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(p *Publisher) { p.runID = id }
}

// WithResources restricts the pass to the named resources. The selection
// must be closed under dependencies.
func WithResources(names ...string) Option {
	return func(p *Publisher) { p.selected = names }
}

// NewPublisher creates a publisher for graph.
func NewPublisher(graph *topology.Graph, opts ...Option) *Publisher {
	p := &Publisher{graph: graph}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	if p.provisioner == nil {
		p.provisioner = provision.NewStatic(nil, nil)
	}
	return p
}

// RunID identifies the publish pass in logs and output.
func (p *Publisher) RunID() string { return p.runID }

// Publish runs one pass over the topology. Every resource is evaluated in
// its own goroutine and waits on the completion signal of each resource it
// depends on. A failure fails only the resources depending on it; the first
// root cause in topological order is returned. If ctx ends, resources not
// yet finished stay Waiting and ctx.Err() is returned.
func (p *Publisher) Publish(ctx context.Context) (*Result, error) {
	order, err := p.order()
	if err != nil {
		return nil, err
	}

	logger := p.logger.With("run_id", p.runID)
	ps := &pass{
		publisher: p,
		logger:    logger,
		cache:     params.NewCache(ctx, logger),
		nodes:     make(map[string]*node, len(order)),
		reported:  make(map[string]bool),
	}
	ps.resolver = resolve.NewResolver(p.graph, logger)
	for _, name := range order {
		r, _ := p.graph.Resource(name)
		ps.nodes[name] = &node{
			resource: r,
			done:     async.NewFuture[string](),
			result: &ResourceResult{
				Name:        name,
				Environment: r.EnvironmentName(),
				State:       StateWaiting,
			},
		}
	}

	result := &Result{
		RunID:     p.runID,
		StartedAt: time.Now(),
		Order:     order,
		Resources: make(map[string]*ResourceResult, len(order)),
	}
	logger.Info("publishing topology", "resources", len(order))

	// Resources never return errors to the group: a failure is recorded on
	// the node so unrelated resources keep running.
	var g errgroup.Group
	for _, env := range p.environments(order) {
		g.Go(func() error {
			ps.provision(ctx, env)
			return nil
		})
	}
	for _, name := range order {
		n := ps.nodes[name]
		g.Go(func() error {
			ps.run(ctx, n)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(result.StartedAt)
	for _, name := range order {
		result.Resources[name] = ps.nodes[name].result
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("publish cancelled", "error", err)
		return result, err
	}
	for _, name := range order {
		if res := result.Resources[name]; res.RootCause {
			return result, res.Err
		}
	}
	logger.Info("topology published", "resources", len(order), "duration", result.Duration)
	return result, nil
}

// order returns the resources of this pass in topological order.
func (p *Publisher) order() ([]string, error) {
	all := p.graph.TopologicalOrder()
	if len(p.selected) == 0 {
		return all, nil
	}

	selected := make(map[string]bool, len(p.selected))
	for _, name := range p.selected {
		if _, ok := p.graph.Resource(name); !ok {
			return nil, fmt.Errorf("resource %s: %w", name, topology.ErrUnknownName)
		}
		selected[name] = true
	}
	for name := range selected {
		for _, dep := range p.graph.Successors(name) {
			if !selected[dep] {
				return nil, fmt.Errorf("resource %s depends on %s which is not selected", name, dep)
			}
		}
	}
	return slices.DeleteFunc(all, func(name string) bool { return !selected[name] }), nil
}

// environments returns the unprovisioned environments used by resources
// of this pass.
func (p *Publisher) environments(order []string) []*topology.Environment {
	seen := make(map[string]bool)
	var envs []*topology.Environment
	for _, name := range order {
		r, _ := p.graph.Resource(name)
		if r.Environment == nil || seen[r.Environment.Name] || r.Environment.Provisioned() {
			continue
		}
		seen[r.Environment.Name] = true
		envs = append(envs, r.Environment)
	}
	return envs
}

type node struct {
	resource *topology.Resource
	// done settles with the connection string once the resource is Running,
	// or with its error once it has Failed.
	done   *async.Future[string]
	result *ResourceResult
	// cause is the error that originated the failure, shared by every
	// dependent.
	cause error
}

// pass holds the state of one Publish call.
type pass struct {
	publisher *Publisher
	logger    *slog.Logger
	cache     *params.Cache
	resolver  *resolve.Resolver
	nodes     map[string]*node

	mu       sync.Mutex
	reported map[string]bool
}

func (ps *pass) emit(e Event) {
	for _, o := range ps.publisher.observers {
		o.OnEvent(e)
	}
}

func (ps *pass) provision(ctx context.Context, env *topology.Environment) {
	domain, err := ps.publisher.provisioner.Provision(ctx, env, ps)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		_ = env.FailDomain(err)
		return
	}
	if err := env.SetDomain(domain); err != nil {
		ps.logger.Debug("environment already provisioned", "environment", env.Name)
		return
	}
	ps.logger.Debug("environment provisioned", "environment", env.Name, "kind", env.Kind, "domain", domain)
}

func (ps *pass) run(ctx context.Context, n *node) {
	name := n.resource.Name
	ps.emit(Event{Resource: name, Type: EventWaiting})

	for _, dep := range n.resource.DependsOn {
		upstream, ok := ps.nodes[dep]
		if !ok {
			ps.fail(n, fmt.Errorf("resource %s depends on %s which is not part of this pass", name, dep), nil)
			return
		}
		if _, err := upstream.done.Await(ctx); err != nil {
			if ctx.Err() != nil {
				_ = n.done.Reject(ctx.Err())
				return
			}
			ps.fail(n, &expression.UpstreamResourceFailed{Resource: dep, Err: upstream.cause}, upstream.cause)
			return
		}
	}

	ps.emit(Event{Resource: name, Type: EventEvaluating})
	ps.logger.Debug("evaluating resource", "resource", name)

	env, conn, err := ps.evaluate(ctx, n.resource)
	if err != nil {
		if ctx.Err() != nil {
			_ = n.done.Reject(ctx.Err())
			return
		}
		ps.fail(n, err, nil)
		return
	}

	secrets := ps.publisher.secretKeys(n.resource)
	n.result.Env = env
	n.result.Secrets = secrets
	n.result.ConnectionString = conn
	n.result.ConnectionStringSecret = n.resource.ConnectionString != nil && ps.publisher.secretExpression(n.resource.ConnectionString)
	n.result.State = StateRunning

	ps.logger.Info("resource running", "resource", name, "environment", n.result.Environment)
	ps.emit(Event{Resource: name, Type: EventRunning})
	_ = n.done.Resolve(conn)
}

func (ps *pass) evaluate(ctx context.Context, r *topology.Resource) (map[string]string, string, error) {
	entries, err := ps.resolver.Resolve(ctx, r, r.Config())
	if err != nil {
		return nil, "", err
	}

	env, err := resolve.Flatten(ctx, entries, ps)
	if err != nil {
		return nil, "", fmt.Errorf("resource %s: %w", r.Name, err)
	}

	var conn string
	if r.ConnectionString != nil {
		conn, err = r.ConnectionString.Evaluate(ctx, ps)
		if err != nil {
			return nil, "", fmt.Errorf("resource %s connection string: %w", r.Name, err)
		}
	}
	return env, conn, nil
}

// fail moves n to Failed. cause is the upstream root cause when the
// failure was inherited, nil when it originated here.
func (ps *pass) fail(n *node, err error, cause error) {
	name := n.resource.Name
	n.result.State = StateFailed
	n.result.Err = err
	n.result.RootCause = cause == nil
	if cause == nil {
		cause = err
	}
	n.cause = cause

	if n.result.RootCause && ps.firstReport(rootCauseKey(name, err)) {
		ps.logger.Error("resource failed", "resource", name, "error", err)
	} else {
		ps.logger.Debug("resource failed", "resource", name, "error", err)
	}
	ps.emit(Event{Resource: name, Type: EventFailed, Err: err})
	_ = n.done.Reject(err)
}

func (ps *pass) firstReport(key string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.reported[key] {
		return false
	}
	ps.reported[key] = true
	return true
}

// rootCauseKey identifies a failure source so a parameter or environment
// shared by several resources is reported once.
func rootCauseKey(resource string, err error) string {
	var paramErr *expression.ParameterResolutionFailed
	if errors.As(err, &paramErr) {
		return "parameter/" + paramErr.Parameter
	}
	var provErr *provision.Error
	if errors.As(err, &provErr) {
		return "environment/" + provErr.Environment
	}
	return "resource/" + resource
}

// ParameterValue implements expression.Source and provision.ParameterSource.
func (ps *pass) ParameterValue(ctx context.Context, name string) (string, error) {
	p, ok := ps.publisher.graph.Parameter(name)
	if !ok {
		return "", fmt.Errorf("parameter %s: %w", name, topology.ErrUnknownName)
	}
	return ps.cache.Value(ctx, p)
}

// ConnectionString implements expression.Source. It blocks until the
// resource is Running.
func (ps *pass) ConnectionString(ctx context.Context, resource string) (string, error) {
	n, ok := ps.nodes[resource]
	if !ok {
		return "", fmt.Errorf("resource %s is not part of this pass", resource)
	}
	return n.done.Await(ctx)
}
