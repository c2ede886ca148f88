package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sourceplane/apphost/internal/lifecycle"
	"github.com/sourceplane/apphost/internal/model"
	"github.com/sourceplane/apphost/internal/params"
	"github.com/sourceplane/apphost/internal/topology"
)

// ManifestOptions controls how a publish result is rendered
type ManifestOptions struct {
	Name        string
	ShowSecrets bool
	// Commands holds the declared command of each project, by resource name.
	Commands map[string][]string
}

// Renderer turns publish results into manifests
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderManifest builds the manifest of a publish result. Resources appear
// in the order they were published.
func (r *Renderer) RenderManifest(graph *topology.Graph, result *lifecycle.Result, opts ManifestOptions) *model.Manifest {
	manifest := &model.Manifest{
		APIVersion: "sourceplane.io/v1",
		Kind:       "Manifest",
		Metadata: model.ManifestMetadata{
			Name:        opts.Name,
			RunID:       result.RunID,
			GeneratedAt: result.StartedAt.UTC().Format(time.RFC3339),
			Duration:    result.Duration.Round(time.Millisecond).String(),
		},
		Environments: make([]model.ManifestEnvironment, 0),
		Resources:    make([]model.ManifestResource, 0, len(result.Order)),
	}

	used := make(map[string]bool)
	for _, name := range result.Order {
		res, ok := result.Resource(name)
		if !ok {
			continue
		}
		node, _ := graph.Resource(name)

		mr := model.ManifestResource{
			Name:                   name,
			Environment:            res.Environment,
			State:                  res.State.String(),
			Command:                slices.Clone(opts.Commands[name]),
			ConnectionString:       res.ConnectionString,
			ConnectionStringSecret: res.ConnectionStringSecret,
		}
		if node != nil {
			mr.Kind = node.Kind.String()
			mr.DependsOn = slices.Clone(node.DependsOn)
		}
		if res.Err != nil {
			mr.Error = res.Err.Error()
		}
		if res.ConnectionStringSecret && !opts.ShowSecrets && mr.ConnectionString != "" {
			mr.ConnectionString = params.Redact(mr.ConnectionString)
			manifest.Metadata.Redacted = true
		}

		for _, key := range sortedKeys(res.Env) {
			ev := model.EnvVar{Name: key, Value: res.Env[key], Secret: res.Secrets[key]}
			if ev.Secret && !opts.ShowSecrets {
				ev.Value = params.Redact(ev.Value)
				manifest.Metadata.Redacted = true
			}
			mr.Env = append(mr.Env, ev)
		}

		if res.Environment != "" {
			used[res.Environment] = true
		}
		manifest.Resources = append(manifest.Resources, mr)
	}

	for _, env := range graph.Environments() {
		if !used[env.Name] {
			continue
		}
		me := model.ManifestEnvironment{Name: env.Name, Kind: env.Kind.String()}
		if env.Provisioned() {
			// settled, so this does not block
			if domain, err := env.AwaitDomain(context.Background()); err == nil {
				me.Domain = domain
			}
		}
		manifest.Environments = append(manifest.Environments, me)
	}

	return manifest
}

// RenderJSON renders a manifest as JSON
func (r *Renderer) RenderJSON(manifest *model.Manifest) ([]byte, error) {
	return json.MarshalIndent(manifest, "", "  ")
}

// RenderYAML renders a manifest as YAML
func (r *Renderer) RenderYAML(manifest *model.Manifest) ([]byte, error) {
	return yaml.Marshal(manifest)
}

// RenderDotEnv renders one resource's configuration as a dotenv file.
func (r *Renderer) RenderDotEnv(resource *model.ManifestResource) []byte {
	var sb strings.Builder
	for _, ev := range resource.Env {
		fmt.Fprintf(&sb, "%s=%s\n", ev.Name, dotEnvValue(ev.Value))
	}
	return []byte(sb.String())
}

func dotEnvValue(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\n\"'#$\\=") {
		return strconv.Quote(v)
	}
	return v
}

// WriteManifest writes a manifest to file (JSON or YAML based on extension)
func (r *Renderer) WriteManifest(manifest *model.Manifest, path string) error {
	var data []byte
	var err error

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = r.RenderYAML(manifest)
	default:
		data, err = r.RenderJSON(manifest)
	}
	if err != nil {
		return fmt.Errorf("failed to render manifest: %w", err)
	}

	// the manifest may carry secrets when rendered with ShowSecrets
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write manifest to %s: %w", path, err)
	}

	return nil
}

// Summary outputs a short text description of the manifest
func (r *Renderer) Summary(manifest *model.Manifest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Manifest: %s (run %s)\n", manifest.Metadata.Name, manifest.Metadata.RunID)
	fmt.Fprintf(&sb, "Resources: %d\n\n", len(manifest.Resources))

	for _, res := range manifest.Resources {
		fmt.Fprintf(&sb, "Resource: %s\n", res.Name)
		fmt.Fprintf(&sb, "  Kind: %s\n", res.Kind)
		if res.Environment != "" {
			fmt.Fprintf(&sb, "  Environment: %s\n", res.Environment)
		}
		fmt.Fprintf(&sb, "  State: %s\n", res.State)
		fmt.Fprintf(&sb, "  DependsOn: %v\n", res.DependsOn)
		if res.Error != "" {
			fmt.Fprintf(&sb, "  Error: %s\n", res.Error)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
