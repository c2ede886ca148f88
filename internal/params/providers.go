// Package params sources parameter values from the environment, secret
// files, CLI configuration and literal defaults.
package params

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound     = errors.New("params: value not found")
	ErrInvalidKey   = errors.New("params: invalid key")
	ErrMissingValue = errors.New("params: parameter value is missing")
)

// Provider looks up a raw value by key. Implementations return an error
// matching ErrNotFound when the key is absent.
type Provider interface {
	Name() string
	Get(ctx context.Context, key string) (string, error)
}

// EnvProvider reads values from environment variables. Keys are converted
// to uppercase with dots and dashes replaced by underscores, so
// "oai.apikey" becomes "OAI_APIKEY".
type EnvProvider struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates an environment variable provider. A non-empty
// prefix is prepended to every lookup.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix, lookup: os.LookupEnv}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	envKey := p.envKey(key)
	val, ok := p.lookup(envKey)
	if !ok {
		return "", fmt.Errorf("%w: env var %s", ErrNotFound, envKey)
	}
	return val, nil
}

func (p *EnvProvider) envKey(key string) string {
	k := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if p.prefix != "" {
		return strings.ToUpper(p.prefix) + k
	}
	return k
}

// FileProvider reads values from files in a directory, one file per key.
// This matches Kubernetes secret volume mounts.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a file-backed provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == ".." {
		return "", ErrInvalidKey
	}
	data, err := os.ReadFile(filepath.Join(p.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return strings.TrimRight(string(data), "\n\r"), nil
}

// Settings is the subset of a configuration store ConfigProvider reads.
// *viper.Viper satisfies it.
type Settings interface {
	IsSet(key string) bool
	GetString(key string) string
}

// ConfigProvider reads values from the CLI configuration under
// "parameters.<key>".
type ConfigProvider struct {
	settings Settings
}

// NewConfigProvider creates a provider over the given configuration store.
func NewConfigProvider(settings Settings) *ConfigProvider {
	return &ConfigProvider{settings: settings}
}

func (p *ConfigProvider) Name() string { return "config" }

func (p *ConfigProvider) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	path := "parameters." + key
	if p.settings == nil || !p.settings.IsSet(path) {
		return "", fmt.Errorf("%w: config key %s", ErrNotFound, path)
	}
	return p.settings.GetString(path), nil
}

// LiteralProvider serves values declared inline in the topology document.
type LiteralProvider struct {
	values map[string]string
}

// NewLiteralProvider creates a provider over a fixed set of values.
func NewLiteralProvider(values map[string]string) *LiteralProvider {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &LiteralProvider{values: copied}
}

func (p *LiteralProvider) Name() string { return "literal" }

func (p *LiteralProvider) Get(_ context.Context, key string) (string, error) {
	val, ok := p.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}
