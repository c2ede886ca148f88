package topology

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/apphost/internal/expression"
)

func staticParam(name, value string, secret bool) *Parameter {
	return &Parameter{
		Name:   name,
		Secret: secret,
		Provider: func(context.Context) (string, error) {
			return value, nil
		},
	}
}

var webEndpoints = []Endpoint{{Scheme: "http"}, {Scheme: "https"}}

func TestBuildRejectsThreeNodeCycle(t *testing.T) {
	b := NewBuilder()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, b.AddResource(ResourceSpec{Name: name}))
	}
	require.NoError(t, b.AddDependency("a", "b"))
	require.NoError(t, b.AddDependency("b", "c"))
	require.NoError(t, b.AddDependency("c", "a"))

	g, err := b.Build()
	require.Error(t, err)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, ErrCycleDetected)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycleErr.Cycle)
}

func TestBuildRejectsSelfDependency(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddResource(ResourceSpec{Name: "a"}))
	require.NoError(t, b.AddDependency("a", "a"))

	_, err := b.Build()
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestBuildRejectsCycleThroughReferences(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddResource(ResourceSpec{Name: "api", Endpoints: webEndpoints}))
	require.NoError(t, b.AddResource(ResourceSpec{Name: "web", Endpoints: webEndpoints}))
	require.NoError(t, b.AddReference("web", "api"))
	require.NoError(t, b.AddDependency("api", "web"))

	_, err := b.Build()
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestGraphTraversal(t *testing.T) {
	fe := NewEnvironment("fe", KindDomainRouted)
	be := NewEnvironment("be", KindGatewayRouted)

	b := NewBuilder()
	require.NoError(t, b.AddEnvironment(fe))
	require.NoError(t, b.AddEnvironment(be))
	require.NoError(t, b.AddResource(ResourceSpec{Name: "images", Kind: ResourceConnectionEndpoint, ConnectionString: "UseDevelopmentStorage=true"}))
	require.NoError(t, b.AddResource(ResourceSpec{Name: "api", Environment: "be", Endpoints: webEndpoints}))
	require.NoError(t, b.AddResource(ResourceSpec{Name: "web", Environment: "fe", Endpoints: webEndpoints}))
	require.NoError(t, b.AddReference("api", "images"))
	require.NoError(t, b.AddReference("web", "api"))
	require.NoError(t, b.AddDependency("web", "images"))

	g, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"api", "images", "web"}, g.Names())
	assert.Equal(t, []string{"api", "images"}, g.Successors("web"))
	assert.Equal(t, []string{"api", "web"}, g.Predecessors("images"))
	assert.Empty(t, g.Successors("images"))
	assert.Equal(t, []string{"images", "api", "web"}, g.TopologicalOrder())

	inBE := g.InEnvironment("be")
	require.Len(t, inBE, 1)
	assert.Equal(t, "api", inBE[0].Name)
	assert.Empty(t, g.InEnvironment("missing"))

	web, ok := g.Resource("web")
	require.True(t, ok)
	assert.Same(t, fe, web.Environment)
	assert.Equal(t, "fe", web.EnvironmentName())
}

func TestAddReferenceExpandsServiceKeys(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddResource(ResourceSpec{
		Name:      "api",
		Endpoints: []Endpoint{{Scheme: "http"}, {Scheme: "https"}, {Scheme: "https", Port: 8443}},
	}))
	require.NoError(t, b.AddResource(ResourceSpec{Name: "web"}))
	require.NoError(t, b.AddReference("web", "api"))

	g, err := b.Build()
	require.NoError(t, err)

	web, _ := g.Resource("web")
	assert.Equal(t, map[string]Value{
		"services__api__http__0":  EndpointRef("api", "http"),
		"services__api__https__0": EndpointRef("api", "https"),
		"services__api__https__1": EndpointRef("api", "https"),
	}, web.Config())
	assert.Equal(t, []string{"api"}, web.DependsOn)
}

func TestAddReferenceKeepsExplicitEntry(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddResource(ResourceSpec{Name: "api", Endpoints: webEndpoints}))
	require.NoError(t, b.AddResource(ResourceSpec{Name: "web"}))
	require.NoError(t, b.AddConfigEntry("web", "services__api__https__0", Literal("https://pinned.example")))
	require.NoError(t, b.AddReference("web", "api"))

	g, err := b.Build()
	require.NoError(t, err)

	web, _ := g.Resource("web")
	assert.Equal(t, Literal("https://pinned.example"), web.Config()["services__api__https__0"])
	assert.Equal(t, EndpointRef("api", "http"), web.Config()["services__api__http__0"])
}

func TestAddReferenceToConnectionEndpoint(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddParameter(staticParam("oai-apikey", "k", true)))
	require.NoError(t, b.AddResource(ResourceSpec{
		Name:             "oai",
		Kind:             ResourceConnectionEndpoint,
		ConnectionString: expression.OpenAITemplate("", "oai-apikey", "gpt-4o"),
	}))
	require.NoError(t, b.AddResource(ResourceSpec{Name: "worker"}))
	require.NoError(t, b.AddReference("worker", "oai"))

	g, err := b.Build()
	require.NoError(t, err)

	worker, _ := g.Resource("worker")
	v, ok := worker.Config()["ConnectionStrings__oai"]
	require.True(t, ok)
	assert.Equal(t, ValueExpression, v.Kind)
	assert.Equal(t, []string{"oai"}, v.Expression.Resources())

	oai, _ := g.Resource("oai")
	assert.Equal(t, []string{"oai-apikey"}, oai.ConnectionString.Parameters())
}

func TestBuildParsesTemplates(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddParameter(staticParam("key", "k", true)))
	require.NoError(t, b.AddResource(ResourceSpec{Name: "db", Kind: ResourceConnectionEndpoint, ConnectionString: "Host=db;Password={key}"}))
	require.NoError(t, b.AddResource(ResourceSpec{Name: "app"}))
	require.NoError(t, b.AddConfigEntry("app", "DB", Template("{db};Pooling=true")))

	g, err := b.Build()
	require.NoError(t, err)

	app, _ := g.Resource("app")
	entry := app.Config()["DB"]
	require.NotNil(t, entry.Expression)
	assert.Equal(t, []string{"db"}, entry.Expression.Resources())
	assert.Equal(t, []string{"db"}, app.DependsOn)
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *Builder) error
	}{
		{
			name: "unknown environment",
			setup: func(b *Builder) error {
				return b.AddResource(ResourceSpec{Name: "web", Environment: "nowhere"})
			},
		},
		{
			name: "unknown parameter",
			setup: func(b *Builder) error {
				if err := b.AddResource(ResourceSpec{Name: "web"}); err != nil {
					return err
				}
				return b.AddConfigEntry("web", "KEY", ParameterRef("missing"))
			},
		},
		{
			name: "unknown template reference",
			setup: func(b *Builder) error {
				return b.AddResource(ResourceSpec{Name: "db", Kind: ResourceConnectionEndpoint, ConnectionString: "{nope}"})
			},
		},
		{
			name: "endpoint scheme not exposed",
			setup: func(b *Builder) error {
				if err := b.AddResource(ResourceSpec{Name: "api", Endpoints: []Endpoint{{Scheme: "http"}}}); err != nil {
					return err
				}
				if err := b.AddResource(ResourceSpec{Name: "web"}); err != nil {
					return err
				}
				return b.AddConfigEntry("web", "API", EndpointRef("api", "https"))
			},
		},
		{
			name: "reference to unknown resource",
			setup: func(b *Builder) error {
				if err := b.AddResource(ResourceSpec{Name: "web"}); err != nil {
					return err
				}
				return b.AddReference("web", "ghost")
			},
		},
		{
			name: "expression targets project without connection string",
			setup: func(b *Builder) error {
				if err := b.AddResource(ResourceSpec{Name: "api", Endpoints: webEndpoints}); err != nil {
					return err
				}
				if err := b.AddResource(ResourceSpec{Name: "web"}); err != nil {
					return err
				}
				return b.AddConfigEntry("web", "API", Template("{api}"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			require.NoError(t, tt.setup(b))
			_, err := b.Build()
			assert.Error(t, err)
		})
	}
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddResource(ResourceSpec{Name: "web"}))
	assert.ErrorIs(t, b.AddResource(ResourceSpec{Name: "web"}), ErrAlreadyExists)
	assert.ErrorIs(t, b.AddParameter(staticParam("web", "", false)), ErrAlreadyExists)

	require.NoError(t, b.AddEnvironment(NewEnvironment("fe", KindDomainRouted)))
	assert.ErrorIs(t, b.AddEnvironment(NewEnvironment("fe", KindGatewayRouted)), ErrAlreadyExists)

	assert.Error(t, b.AddConfigEntry("web", "", Literal("x")))
	assert.ErrorIs(t, b.AddConfigEntry("ghost", "K", Literal("x")), ErrUnknownName)
	assert.Error(t, b.AddResource(ResourceSpec{Name: "bad", Endpoints: []Endpoint{{Scheme: "tcp"}}}))
}

func TestEnvironmentDomain(t *testing.T) {
	env := NewEnvironment("be", KindGatewayRouted)
	assert.False(t, env.Provisioned())

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = env.SetDomain("example.internal")
	}()

	domain, err := env.AwaitDomain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "example.internal", domain)
	assert.True(t, env.Provisioned())
	assert.Error(t, env.SetDomain("other"))
}

func TestParseEnvironmentKind(t *testing.T) {
	assert.Equal(t, KindDomainRouted, ParseEnvironmentKind("domain-routed"))
	assert.Equal(t, KindGatewayRouted, ParseEnvironmentKind("Gateway-Routed"))
	assert.Equal(t, KindGatewayRouted, ParseEnvironmentKind("container-apps"))
	assert.Equal(t, KindUnsupported, ParseEnvironmentKind("kubernetes"))
	assert.Equal(t, "unsupported", KindUnsupported.String())
}

func TestServiceKey(t *testing.T) {
	tests := []struct {
		key  string
		want ServiceKey
		ok   bool
	}{
		{key: "services__api__https__0", want: ServiceKey{Resource: "api", Scheme: "https", Index: 0}, ok: true},
		{key: "services__image-processor__http__2", want: ServiceKey{Resource: "image-processor", Scheme: "http", Index: 2}, ok: true},
		{key: "services__api__tcp__0"},
		{key: "services__api__https"},
		{key: "services____https__0"},
		{key: "services__api__https__x"},
		{key: "ConnectionStrings__images"},
		{key: ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := ParseServiceKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.key, got.String())
			}
		})
	}
}
