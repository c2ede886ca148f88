package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/apphost/internal/expression"
	"github.com/sourceplane/apphost/internal/topology"
)

const apiKey = "services__api__https__0"

type fixture struct {
	graph *topology.Graph
	fe    *topology.Environment
	be    *topology.Environment
}

// newFixture builds web (fe) and api (be) with web holding an https
// reference to api. Environment kinds are supplied by the caller.
func newFixture(t *testing.T, feKind, beKind topology.EnvironmentKind, extra func(b *topology.Builder)) fixture {
	t.Helper()
	fe := topology.NewEnvironment("fe", feKind)
	be := topology.NewEnvironment("be", beKind)

	b := topology.NewBuilder()
	require.NoError(t, b.AddEnvironment(fe))
	require.NoError(t, b.AddEnvironment(be))
	require.NoError(t, b.AddResource(topology.ResourceSpec{
		Name:        "api",
		Environment: "be",
		Endpoints:   []topology.Endpoint{{Scheme: "http"}, {Scheme: "https"}},
	}))
	require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "web", Environment: "fe"}))
	require.NoError(t, b.AddConfigEntry("web", apiKey, topology.EndpointRef("api", "https")))
	if extra != nil {
		extra(b)
	}

	g, err := b.Build()
	require.NoError(t, err)
	return fixture{graph: g, fe: fe, be: be}
}

func (f fixture) resource(t *testing.T, name string) *topology.Resource {
	t.Helper()
	r, ok := f.graph.Resource(name)
	require.True(t, ok)
	return r
}

func TestResolveCrossEnvironmentScenario(t *testing.T) {
	f := newFixture(t, topology.KindDomainRouted, topology.KindGatewayRouted, nil)
	require.NoError(t, f.be.SetDomain("example.internal"))

	web := f.resource(t, "web")
	resolved, err := NewResolver(f.graph, nil).Resolve(context.Background(), web, web.Config())
	require.NoError(t, err)

	assert.Equal(t, topology.Literal("https://api.example.internal"), resolved[apiKey])

	env, err := Flatten(context.Background(), resolved, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.internal", env[apiKey])
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	f := newFixture(t, topology.KindDomainRouted, topology.KindGatewayRouted, nil)
	require.NoError(t, f.be.SetDomain("example.internal"))

	web := f.resource(t, "web")
	entries := web.Config()
	_, err := NewResolver(f.graph, nil).Resolve(context.Background(), web, entries)
	require.NoError(t, err)

	assert.Equal(t, topology.EndpointRef("api", "https"), entries[apiKey])
	assert.Equal(t, topology.EndpointRef("api", "https"), web.Config()[apiKey])
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture(t, topology.KindDomainRouted, topology.KindGatewayRouted, nil)
	require.NoError(t, f.be.SetDomain("example.internal"))

	web := f.resource(t, "web")
	r := NewResolver(f.graph, nil)
	first, err := r.Resolve(context.Background(), web, web.Config())
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), web, first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveSameEnvironmentLeftUntouched(t *testing.T) {
	f := newFixture(t, topology.KindDomainRouted, topology.KindGatewayRouted, func(b *topology.Builder) {
		require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "worker", Environment: "be"}))
		require.NoError(t, b.AddReference("worker", "api"))
	})

	worker := f.resource(t, "worker")
	// The domain is never provisioned; a same-environment reference must not wait for it.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resolved, err := NewResolver(f.graph, nil).Resolve(ctx, worker, worker.Config())
	require.NoError(t, err)
	assert.Equal(t, topology.EndpointRef("api", "https"), resolved[apiKey])
	assert.Equal(t, topology.EndpointRef("api", "http"), resolved["services__api__http__0"])

	env, err := Flatten(ctx, resolved, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api", env[apiKey])
	assert.Equal(t, "http://api", env["services__api__http__0"])
}

func TestResolveBothUnassignedIsSameEnvironment(t *testing.T) {
	b := topology.NewBuilder()
	require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "api", Endpoints: []topology.Endpoint{{Scheme: "https"}}}))
	require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "web"}))
	require.NoError(t, b.AddReference("web", "api"))
	g, err := b.Build()
	require.NoError(t, err)

	web, _ := g.Resource("web")
	resolved, err := NewResolver(g, nil).Resolve(context.Background(), web, web.Config())
	require.NoError(t, err)
	assert.Equal(t, topology.EndpointRef("api", "https"), resolved[apiKey])
}

func TestResolveFailsClosed(t *testing.T) {
	tests := []struct {
		name       string
		beKind     topology.EnvironmentKind
		wantKind   topology.EnvironmentKind
		unassigned bool
	}{
		{name: "domain routed target", beKind: topology.KindDomainRouted, wantKind: topology.KindDomainRouted},
		{name: "unsupported target", beKind: topology.KindUnsupported, wantKind: topology.KindUnsupported},
		{name: "unassigned target", unassigned: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g *topology.Graph
			if tt.unassigned {
				b := topology.NewBuilder()
				require.NoError(t, b.AddEnvironment(topology.NewEnvironment("fe", topology.KindDomainRouted)))
				require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "api", Endpoints: []topology.Endpoint{{Scheme: "https"}}}))
				require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "web", Environment: "fe"}))
				require.NoError(t, b.AddReference("web", "api"))
				built, err := b.Build()
				require.NoError(t, err)
				g = built
			} else {
				g = newFixture(t, topology.KindDomainRouted, tt.beKind, nil).graph
			}

			web, _ := g.Resource("web")
			resolved, err := NewResolver(g, nil).Resolve(context.Background(), web, web.Config())
			require.Error(t, err)
			assert.Nil(t, resolved)
			assert.ErrorIs(t, err, ErrUnsupportedEnvironmentCombination)

			var unsupported *UnsupportedEnvironmentCombination
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, "web", unsupported.Resource)
			assert.Equal(t, apiKey, unsupported.Key)
			assert.Equal(t, "api", unsupported.Target)
			assert.Equal(t, tt.wantKind, unsupported.TargetKind)
			assert.Contains(t, err.Error(), "web")
		})
	}
}

func TestResolveUnassignedSourceToGateway(t *testing.T) {
	be := topology.NewEnvironment("be", topology.KindGatewayRouted)
	b := topology.NewBuilder()
	require.NoError(t, b.AddEnvironment(be))
	require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "api", Environment: "be", Endpoints: []topology.Endpoint{{Scheme: "https"}}}))
	require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "web"}))
	require.NoError(t, b.AddReference("web", "api"))
	g, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, be.SetDomain("example.internal"))

	web, _ := g.Resource("web")
	resolved, err := NewResolver(g, nil).Resolve(context.Background(), web, web.Config())
	require.NoError(t, err)
	assert.Equal(t, topology.Literal("https://api.example.internal"), resolved[apiKey])
}

func TestResolveWaitsForDomain(t *testing.T) {
	f := newFixture(t, topology.KindDomainRouted, topology.KindGatewayRouted, nil)
	web := f.resource(t, "web")

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = f.be.SetDomain("late.example")
	}()

	resolved, err := NewResolver(f.graph, nil).Resolve(context.Background(), web, web.Config())
	require.NoError(t, err)
	assert.Equal(t, topology.Literal("https://api.late.example"), resolved[apiKey])
}

func TestResolveDomainFailure(t *testing.T) {
	f := newFixture(t, topology.KindDomainRouted, topology.KindGatewayRouted, nil)
	boom := errors.New("provisioning failed")
	require.NoError(t, f.be.FailDomain(boom))

	web := f.resource(t, "web")
	_, err := NewResolver(f.graph, nil).Resolve(context.Background(), web, web.Config())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUnsupportedEnvironmentCombination)
}

func TestResolveCancelled(t *testing.T) {
	f := newFixture(t, topology.KindDomainRouted, topology.KindGatewayRouted, nil)
	web := f.resource(t, "web")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(f.graph, nil).Resolve(ctx, web, web.Config())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolvePassThrough(t *testing.T) {
	f := newFixture(t, topology.KindDomainRouted, topology.KindGatewayRouted, func(b *topology.Builder) {
		require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "worker", Environment: "be"}))
	})
	web := f.resource(t, "web")
	worker := f.resource(t, "worker")

	// The domain is never provisioned: none of these entries may wait for it.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	entries := map[string]topology.Value{
		"":         topology.EndpointRef("api", "https"),
		"GREETING": topology.Literal("hello"),
	}
	resolved, err := NewResolver(f.graph, nil).Resolve(ctx, web, entries)
	require.NoError(t, err)
	assert.Equal(t, entries, resolved)

	local := map[string]topology.Value{
		"services__api__http__0":    topology.EndpointRef("api", "https"),
		"services__other__https__0": topology.EndpointRef("api", "https"),
	}
	resolved, err = NewResolver(f.graph, nil).Resolve(ctx, worker, local)
	require.NoError(t, err)
	assert.Equal(t, local, resolved)

	env, err := Flatten(ctx, resolved, stubSource{})
	require.NoError(t, err)
	assert.Equal(t, "https://api", env["services__other__https__0"])
}

func TestResolveMismatchedServiceKeyAcrossEnvironments(t *testing.T) {
	f := newFixture(t, topology.KindDomainRouted, topology.KindGatewayRouted, nil)
	require.NoError(t, f.be.SetDomain("example.internal"))
	web := f.resource(t, "web")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, key := range []string{"services__other__https__0", "services__api__http__0"} {
		entries := map[string]topology.Value{key: topology.EndpointRef("api", "https")}
		resolved, err := NewResolver(f.graph, nil).Resolve(ctx, web, entries)
		require.Error(t, err, key)
		assert.Nil(t, resolved, key)
		assert.ErrorIs(t, err, ErrMismatchedServiceKey, key)

		var mismatch *MismatchedServiceKey
		require.ErrorAs(t, err, &mismatch, key)
		assert.Equal(t, "web", mismatch.Resource)
		assert.Equal(t, key, mismatch.Key)
		assert.Equal(t, "api", mismatch.Target)
		assert.Equal(t, "https", mismatch.Scheme)
	}
}

type stubSource struct {
	params map[string]string
	conns  map[string]string
}

func (s stubSource) ParameterValue(_ context.Context, name string) (string, error) {
	v, ok := s.params[name]
	if !ok {
		return "", errors.New("missing")
	}
	return v, nil
}

func (s stubSource) ConnectionString(_ context.Context, resource string) (string, error) {
	v, ok := s.conns[resource]
	if !ok {
		return "", errors.New("not running")
	}
	return v, nil
}

func TestFlatten(t *testing.T) {
	src := stubSource{
		params: map[string]string{"oai-apikey": "sk-test"},
		conns:  map[string]string{"images": "UseDevelopmentStorage=true"},
	}
	mixed := expression.New(
		expression.Lit("Key="), expression.Param("oai-apikey"), expression.Lit(";Blobs="), expression.Res("images"),
	)
	entries := map[string]topology.Value{
		"GREETING":                  topology.Literal("hello"),
		"OPENAI_KEY":                topology.ParameterRef("oai-apikey"),
		"ConnectionStrings__images": topology.ExpressionOf(expression.New(expression.Res("images"))),
		"MIXED":                     topology.ExpressionOf(mixed),
	}

	env, err := Flatten(context.Background(), entries, src)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"GREETING":                  "hello",
		"OPENAI_KEY":                "sk-test",
		"ConnectionStrings__images": "UseDevelopmentStorage=true",
		"MIXED":                     "Key=sk-test;Blobs=UseDevelopmentStorage=true",
	}, env)
}

func TestFlattenParameterFailure(t *testing.T) {
	entries := map[string]topology.Value{
		"OPENAI_KEY": topology.ParameterRef("missing-key"),
	}
	_, err := Flatten(context.Background(), entries, stubSource{})
	require.Error(t, err)
	assert.ErrorIs(t, err, expression.ErrParameterResolutionFailed)
	assert.Contains(t, err.Error(), "OPENAI_KEY")
}
