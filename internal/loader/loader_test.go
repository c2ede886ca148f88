package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/apphost/internal/model"
)

const topologyYAML = `
apiVersion: sourceplane.io/v1
kind: Topology
metadata:
  name: imagefun
parameters:
  - name: oai-apikey
    secret: true
    env: OPENAI_API_KEY
environments:
  - name: be-env
    kind: gateway-routed
    defaultDomain: example.internal
resources:
  - name: oai
    kind: openai
    model: gpt-4o
  - name: imageprocessor
    environment: be-env
    references: [oai]
    env:
      MODE: worker
      API_URL: {endpoint: imageprocessor, scheme: https}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTopology(t *testing.T) {
	topo, err := LoadTopology(writeFile(t, "topology.yaml", topologyYAML))
	require.NoError(t, err)

	assert.Equal(t, "imagefun", topo.Metadata.Name)
	require.Len(t, topo.Parameters, 1)
	assert.True(t, topo.Parameters[0].Secret)
	assert.Equal(t, "OPENAI_API_KEY", topo.Parameters[0].Env)

	require.Len(t, topo.Resources, 2)
	proc := topo.Resources[1]
	assert.Equal(t, []string{"oai"}, proc.References)
	assert.Equal(t, model.LiteralValue("worker"), proc.Env["MODE"])
	assert.Equal(t, model.ConfigValue{Endpoint: "imageprocessor", Scheme: "https"}, proc.Env["API_URL"])
}

func TestLoadTopologyErrors(t *testing.T) {
	_, err := LoadTopology(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read topology file")

	_, err = LoadTopology(writeFile(t, "bad.yaml", "resources: [\n"))
	assert.ErrorContains(t, err, "failed to parse topology YAML")

	_, err = LoadTopology(writeFile(t, "empty.yaml", ""))
	assert.ErrorContains(t, err, "empty")

	_, err = LoadTopology(writeFile(t, "invalid.yaml", "apiVersion: sourceplane.io/v1\nkind: Topology\nmetadata: {name: x}\n"))
	assert.ErrorContains(t, err, "schema validation")
}

func TestLoadManifest(t *testing.T) {
	manifestJSON := `{
  "apiVersion": "sourceplane.io/v1",
  "kind": "Manifest",
  "metadata": {"name": "imagefun", "runId": "abc", "generatedAt": "2026-01-01T00:00:00Z", "redacted": true},
  "resources": [
    {"name": "web", "kind": "project", "state": "Running", "env": [{"name": "GREETING", "value": "hello"}]}
  ]
}`
	manifest, err := LoadManifest(writeFile(t, "manifest.json", manifestJSON))
	require.NoError(t, err)

	web, ok := manifest.Resource("web")
	require.True(t, ok)
	val, ok := web.Lookup("GREETING")
	require.True(t, ok)
	assert.Equal(t, "hello", val)
	assert.True(t, manifest.Metadata.Redacted)
}
