package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/apphost/internal/lifecycle"
	"github.com/sourceplane/apphost/internal/model"
	"github.com/sourceplane/apphost/internal/provision"
	"github.com/sourceplane/apphost/internal/schema"
	"github.com/sourceplane/apphost/internal/topology"
)

func sampleGraph(t *testing.T) *topology.Graph {
	t.Helper()
	b := topology.NewBuilder()
	require.NoError(t, b.AddParameter(&topology.Parameter{
		Name:     "db-password",
		Secret:   true,
		Provider: func(context.Context) (string, error) { return "hunter2", nil },
	}))
	require.NoError(t, b.AddEnvironment(topology.NewEnvironment("fe", topology.KindDomainRouted)))
	require.NoError(t, b.AddEnvironment(topology.NewEnvironment("be", topology.KindGatewayRouted)))
	require.NoError(t, b.AddResource(topology.ResourceSpec{
		Name:             "db",
		Kind:             topology.ResourceConnectionEndpoint,
		ConnectionString: "Host=db;Password={db-password}",
	}))
	require.NoError(t, b.AddResource(topology.ResourceSpec{
		Name:        "api",
		Environment: "be",
		Endpoints:   []topology.Endpoint{{Scheme: "https"}},
	}))
	require.NoError(t, b.AddResource(topology.ResourceSpec{Name: "web", Environment: "fe"}))
	require.NoError(t, b.AddReference("api", "db"))
	require.NoError(t, b.AddConfigEntry("api", "PASSWORD", topology.ParameterRef("db-password")))
	require.NoError(t, b.AddConfigEntry("web", "services__api__https__0", topology.EndpointRef("api", "https")))
	require.NoError(t, b.AddConfigEntry("web", "GREETING", topology.Literal("hello world")))
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func publish(t *testing.T, g *topology.Graph) *lifecycle.Result {
	t.Helper()
	prov := provision.NewStatic(map[string]provision.Domain{"be": {Value: "example.internal"}}, nil)
	result, err := lifecycle.NewPublisher(g, lifecycle.WithProvisioner(prov), lifecycle.WithRunID("run-1")).
		Publish(context.Background())
	require.NoError(t, err)
	return result
}

func TestRenderManifestRedactsSecrets(t *testing.T) {
	g := sampleGraph(t)
	manifest := NewRenderer().RenderManifest(g, publish(t, g), ManifestOptions{
		Name:     "shop",
		Commands: map[string][]string{"api": {"./api", "--serve"}},
	})

	assert.Equal(t, "Manifest", manifest.Kind)
	assert.Equal(t, "run-1", manifest.Metadata.RunID)
	assert.True(t, manifest.Metadata.Redacted)
	require.Len(t, manifest.Resources, 3)

	db, ok := manifest.Resource("db")
	require.True(t, ok)
	assert.Equal(t, "connection-endpoint", db.Kind)
	assert.True(t, db.ConnectionStringSecret)
	assert.Equal(t, "********", db.ConnectionString)

	api, ok := manifest.Resource("api")
	require.True(t, ok)
	assert.Equal(t, "Running", api.State)
	assert.Equal(t, []string{"./api", "--serve"}, api.Command)
	assert.Equal(t, []string{"db"}, api.DependsOn)
	password, _ := api.Lookup("PASSWORD")
	assert.Equal(t, "********", password)
	conn, _ := api.Lookup("ConnectionStrings__db")
	assert.Equal(t, "********", conn)

	web, ok := manifest.Resource("web")
	require.True(t, ok)
	url, _ := web.Lookup("services__api__https__0")
	assert.Equal(t, "https://api.example.internal", url)

	envs := make(map[string]model.ManifestEnvironment)
	for _, env := range manifest.Environments {
		envs[env.Name] = env
	}
	assert.Equal(t, "example.internal", envs["be"].Domain)
	assert.Equal(t, "gateway-routed", envs["be"].Kind)
	assert.Empty(t, envs["fe"].Domain)

	v, err := schema.NewValidator()
	require.NoError(t, err)
	assert.NoError(t, v.ValidateManifest(manifest))
}

func TestRenderManifestShowSecrets(t *testing.T) {
	g := sampleGraph(t)
	manifest := NewRenderer().RenderManifest(g, publish(t, g), ManifestOptions{Name: "shop", ShowSecrets: true})

	assert.False(t, manifest.Metadata.Redacted)
	api, _ := manifest.Resource("api")
	password, _ := api.Lookup("PASSWORD")
	assert.Equal(t, "hunter2", password)
	conn, _ := api.Lookup("ConnectionStrings__db")
	assert.Equal(t, "Host=db;Password=hunter2", conn)
}

func TestRenderDotEnv(t *testing.T) {
	g := sampleGraph(t)
	r := NewRenderer()
	manifest := r.RenderManifest(g, publish(t, g), ManifestOptions{Name: "shop"})

	web, _ := manifest.Resource("web")
	assert.Equal(t,
		"GREETING=\"hello world\"\nservices__api__https__0=https://api.example.internal\n",
		string(r.RenderDotEnv(web)))
}

func TestWriteManifest(t *testing.T) {
	g := sampleGraph(t)
	r := NewRenderer()
	manifest := r.RenderManifest(g, publish(t, g), ManifestOptions{Name: "shop"})
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "out", "manifest.yaml")
	require.NoError(t, r.WriteManifest(manifest, yamlPath))
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	var decoded model.Manifest
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, manifest.Metadata.RunID, decoded.Metadata.RunID)
	assert.Len(t, decoded.Resources, 3)

	jsonPath := filepath.Join(dir, "manifest")
	require.NoError(t, r.WriteManifest(manifest, jsonPath))
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{"))

	summary := r.Summary(manifest)
	assert.Contains(t, summary, "Manifest: shop (run run-1)")
	assert.Contains(t, summary, "Resource: web")
}

func TestTopologyViewer(t *testing.T) {
	tv := NewTopologyViewer(sampleGraph(t))

	tree := tv.ViewTree()
	assert.Contains(t, tree, "be [gateway-routed]")
	assert.Contains(t, tree, "api [project]")
	assert.Contains(t, tree, "(waits for) db")
	assert.Contains(t, tree, "PASSWORD = parameter(db-password, secret)")
	assert.Contains(t, tree, `GREETING = "hello world"`)
	assert.Contains(t, tree, "(no environment)")
	assert.Contains(t, tree, "(connection string) Host=db;Password={db-password}")
	assert.Contains(t, tree, "Summary: 2 environments, 3 resources, 1 parameters")
	assert.NotContains(t, tree, "hunter2")

	view := tv.ViewResource("api")
	assert.Contains(t, view, "Environment: be [gateway-routed]")
	assert.Contains(t, view, "Waits for:\n  └─ db")
	assert.Contains(t, view, "Needed by:\n  └─ web")

	assert.Equal(t, "No resource found: nope", tv.ViewResource("nope"))
	assert.Equal(t, "No resources in topology", NewTopologyViewer(emptyGraph(t)).ViewTree())
}

func emptyGraph(t *testing.T) *topology.Graph {
	t.Helper()
	g, err := topology.NewBuilder().Build()
	require.NoError(t, err)
	return g
}
