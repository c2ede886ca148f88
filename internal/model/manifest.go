package model

// Manifest is the resolved output of a publish run
type Manifest struct {
	APIVersion   string                `yaml:"apiVersion" json:"apiVersion"`
	Kind         string                `yaml:"kind" json:"kind"`
	Metadata     ManifestMetadata      `yaml:"metadata" json:"metadata"`
	Environments []ManifestEnvironment `yaml:"environments" json:"environments"`
	Resources    []ManifestResource    `yaml:"resources" json:"resources"`
}

// ManifestMetadata identifies the run that produced a manifest
type ManifestMetadata struct {
	Name        string `yaml:"name" json:"name"`
	RunID       string `yaml:"runId" json:"runId"`
	GeneratedAt string `yaml:"generatedAt" json:"generatedAt"`
	Duration    string `yaml:"duration,omitempty" json:"duration,omitempty"`
	Redacted    bool   `yaml:"redacted" json:"redacted"`
}

// ManifestEnvironment records a provisioned environment
type ManifestEnvironment struct {
	Name   string `yaml:"name" json:"name"`
	Kind   string `yaml:"kind" json:"kind"`
	Domain string `yaml:"domain,omitempty" json:"domain,omitempty"`
}

// ManifestResource is the resolved configuration of one resource
type ManifestResource struct {
	Name                   string   `yaml:"name" json:"name"`
	Kind                   string   `yaml:"kind" json:"kind"`
	Environment            string   `yaml:"environment,omitempty" json:"environment,omitempty"`
	State                  string   `yaml:"state" json:"state"`
	DependsOn              []string `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	Command                []string `yaml:"command,omitempty" json:"command,omitempty"`
	Env                    []EnvVar `yaml:"env,omitempty" json:"env,omitempty"`
	ConnectionString       string   `yaml:"connectionString,omitempty" json:"connectionString,omitempty"`
	ConnectionStringSecret bool     `yaml:"connectionStringSecret,omitempty" json:"connectionStringSecret,omitempty"`
	Error                  string   `yaml:"error,omitempty" json:"error,omitempty"`
}

// EnvVar is one resolved configuration entry
type EnvVar struct {
	Name   string `yaml:"name" json:"name"`
	Value  string `yaml:"value" json:"value"`
	Secret bool   `yaml:"secret,omitempty" json:"secret,omitempty"`
}

// Lookup returns the value of the named variable.
func (r ManifestResource) Lookup(name string) (string, bool) {
	for _, e := range r.Env {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// Resource returns the named resource.
func (m *Manifest) Resource(name string) (*ManifestResource, bool) {
	for i := range m.Resources {
		if m.Resources[i].Name == name {
			return &m.Resources[i], true
		}
	}
	return nil, false
}
