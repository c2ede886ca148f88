package model

// Topology is the top-level declarative document
type Topology struct {
	APIVersion   string        `yaml:"apiVersion" json:"apiVersion"`
	Kind         string        `yaml:"kind" json:"kind"`
	Metadata     Metadata      `yaml:"metadata" json:"metadata"`
	Parameters   []Parameter   `yaml:"parameters" json:"parameters"`
	Environments []Environment `yaml:"environments" json:"environments"`
	Resources    []Resource    `yaml:"resources" json:"resources"`
}

// Metadata holds standard object metadata
type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Namespace   string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// Parameter declares a deploy-time value and where it is read from.
// Sources are tried in order: CLI config, environment variable, secret
// file, then the inline value.
type Parameter struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Secret      bool    `yaml:"secret,omitempty" json:"secret,omitempty"`
	Value       *string `yaml:"value,omitempty" json:"value,omitempty"`
	Config      string  `yaml:"config,omitempty" json:"config,omitempty"`
	Env         string  `yaml:"env,omitempty" json:"env,omitempty"`
	File        string  `yaml:"file,omitempty" json:"file,omitempty"`
}

// Environment declares a compute target
type Environment struct {
	Name            string `yaml:"name" json:"name"`
	Kind            string `yaml:"kind" json:"kind"` // domain-routed, gateway-routed
	DefaultDomain   string `yaml:"defaultDomain,omitempty" json:"defaultDomain,omitempty"`
	DomainParameter string `yaml:"domainParameter,omitempty" json:"domainParameter,omitempty"`
}

// Resource declares a deployable project or a connection endpoint.
// Model, APIKey and EndpointParameter apply to the openai and github-models
// kinds only.
type Resource struct {
	Name              string                 `yaml:"name" json:"name"`
	Kind              string                 `yaml:"kind" json:"kind"` // project, connection-endpoint, openai, github-models
	Environment       string                 `yaml:"environment,omitempty" json:"environment,omitempty"`
	Endpoints         []Endpoint             `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
	References        []string               `yaml:"references,omitempty" json:"references,omitempty"`
	WaitFor           []string               `yaml:"waitFor,omitempty" json:"waitFor,omitempty"`
	Env               map[string]ConfigValue `yaml:"env,omitempty" json:"env,omitempty"`
	ConnectionString  string                 `yaml:"connectionString,omitempty" json:"connectionString,omitempty"`
	Model             string                 `yaml:"model,omitempty" json:"model,omitempty"`
	APIKey            string                 `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	EndpointParameter string                 `yaml:"endpointParameter,omitempty" json:"endpointParameter,omitempty"`
	Command           []string               `yaml:"command,omitempty" json:"command,omitempty"`
	Labels            map[string]string      `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Endpoint is a network binding exposed by a project
type Endpoint struct {
	Scheme   string `yaml:"scheme" json:"scheme"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	External bool   `yaml:"external,omitempty" json:"external,omitempty"`
}

// NormalizedTopology is the canonical internal representation
type NormalizedTopology struct {
	Metadata         Metadata
	Parameters       map[string]Parameter
	Environments     map[string]Environment
	Resources        map[string]Resource
	ParameterOrder   []string // declaration order
	EnvironmentOrder []string
	ResourceOrder    []string
}
