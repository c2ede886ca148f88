package normalize

import (
	"fmt"
	"regexp"

	"github.com/sourceplane/apphost/internal/expression"
	"github.com/sourceplane/apphost/internal/model"
	"github.com/sourceplane/apphost/internal/topology"
)

const (
	KindProject            = "project"
	KindConnectionEndpoint = "connection-endpoint"
	KindOpenAI             = "openai"
	KindGitHubModels       = "github-models"
)

var nameRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// NormalizeTopology transforms a raw topology into canonical form
func NormalizeTopology(topo *model.Topology) (*model.NormalizedTopology, error) {
	if topo == nil {
		return nil, fmt.Errorf("topology cannot be nil")
	}

	normalized := &model.NormalizedTopology{
		Metadata:     topo.Metadata,
		Parameters:   make(map[string]model.Parameter),
		Environments: make(map[string]model.Environment),
		Resources:    make(map[string]model.Resource),
	}

	for _, p := range topo.Parameters {
		if err := checkName("parameter", p.Name); err != nil {
			return nil, err
		}
		if _, exists := normalized.Parameters[p.Name]; exists {
			return nil, fmt.Errorf("duplicate parameter %s", p.Name)
		}
		normalized.Parameters[p.Name] = p
		normalized.ParameterOrder = append(normalized.ParameterOrder, p.Name)
	}

	for _, env := range topo.Environments {
		if err := normalizeEnvironment(normalized, env); err != nil {
			return nil, err
		}
	}

	// Names first, so references may point forward.
	for _, res := range topo.Resources {
		if err := checkName("resource", res.Name); err != nil {
			return nil, err
		}
		if _, exists := normalized.Resources[res.Name]; exists {
			return nil, fmt.Errorf("duplicate resource %s", res.Name)
		}
		if _, exists := normalized.Parameters[res.Name]; exists {
			return nil, fmt.Errorf("resource %s conflicts with parameter of the same name", res.Name)
		}
		normalized.Resources[res.Name] = res
		normalized.ResourceOrder = append(normalized.ResourceOrder, res.Name)
	}

	for _, name := range normalized.ResourceOrder {
		res, err := normalizeResource(normalized, normalized.Resources[name])
		if err != nil {
			return nil, err
		}
		normalized.Resources[name] = res
	}

	return normalized, nil
}

func normalizeEnvironment(normalized *model.NormalizedTopology, env model.Environment) error {
	if err := checkName("environment", env.Name); err != nil {
		return err
	}
	if _, exists := normalized.Environments[env.Name]; exists {
		return fmt.Errorf("duplicate environment %s", env.Name)
	}
	if env.Kind == "" {
		return fmt.Errorf("environment %s must have a kind", env.Name)
	}
	if env.DefaultDomain != "" && env.DomainParameter != "" {
		return fmt.Errorf("environment %s: defaultDomain and domainParameter are mutually exclusive", env.Name)
	}
	if env.DomainParameter != "" {
		if _, ok := normalized.Parameters[env.DomainParameter]; !ok {
			return fmt.Errorf("environment %s: domain parameter %s is not declared", env.Name, env.DomainParameter)
		}
	}
	// Unknown kinds are kept: they only fail when a cross-environment
	// reference targets them.
	normalized.Environments[env.Name] = env
	normalized.EnvironmentOrder = append(normalized.EnvironmentOrder, env.Name)
	return nil
}

func normalizeResource(normalized *model.NormalizedTopology, res model.Resource) (model.Resource, error) {
	if res.Kind == "" {
		res.Kind = KindProject
	}

	switch res.Kind {
	case KindProject:
		if res.ConnectionString != "" {
			return res, fmt.Errorf("resource %s: projects cannot declare a connection string", res.Name)
		}
		if len(res.Endpoints) == 0 {
			res.Endpoints = []model.Endpoint{{Scheme: "http"}, {Scheme: "https"}}
		}
	case KindConnectionEndpoint:
		if res.ConnectionString == "" {
			return res, fmt.Errorf("resource %s: connection endpoints must declare a connection string", res.Name)
		}
	case KindOpenAI, KindGitHubModels:
		if err := normalizeModelEndpoint(normalized, &res); err != nil {
			return res, err
		}
	default:
		return res, fmt.Errorf("resource %s: unknown kind %q", res.Name, res.Kind)
	}

	if res.Kind != KindProject && len(res.Endpoints) > 0 {
		return res, fmt.Errorf("resource %s: only projects expose endpoints", res.Name)
	}
	for _, ep := range res.Endpoints {
		if err := topology.ValidateScheme(ep.Scheme); err != nil {
			return res, fmt.Errorf("resource %s: %w", res.Name, err)
		}
	}

	if res.Environment != "" {
		if _, ok := normalized.Environments[res.Environment]; !ok {
			return res, fmt.Errorf("resource %s: environment %s is not declared", res.Name, res.Environment)
		}
	}

	var err error
	if res.References, err = normalizeTargets(normalized, res.Name, "reference", res.References); err != nil {
		return res, err
	}
	if res.WaitFor, err = normalizeTargets(normalized, res.Name, "waitFor", res.WaitFor); err != nil {
		return res, err
	}

	env := make(map[string]model.ConfigValue, len(res.Env))
	for key, value := range res.Env {
		if key == "" {
			return res, fmt.Errorf("resource %s: env entry must have a name", res.Name)
		}
		value, err := normalizeValue(normalized, value)
		if err != nil {
			return res, fmt.Errorf("resource %s env %s: %w", res.Name, key, err)
		}
		env[key] = value
	}
	res.Env = env

	if res.Labels == nil {
		res.Labels = make(map[string]string)
	}
	return res, nil
}

// normalizeModelEndpoint turns an openai or github-models resource into a
// connection endpoint, declaring its API key parameter when missing.
func normalizeModelEndpoint(normalized *model.NormalizedTopology, res *model.Resource) error {
	if res.Model == "" {
		return fmt.Errorf("resource %s: %s resources must declare a model", res.Name, res.Kind)
	}
	if res.ConnectionString != "" {
		return fmt.Errorf("resource %s: %s resources build their own connection string", res.Name, res.Kind)
	}

	if res.APIKey == "" {
		res.APIKey = res.Name + "-apikey"
	}
	key, declared := normalized.Parameters[res.APIKey]
	switch {
	case !declared:
		env := "OPENAI_API_KEY"
		if res.Kind == KindGitHubModels {
			env = "GITHUB_TOKEN"
		}
		normalized.Parameters[res.APIKey] = model.Parameter{
			Name:        res.APIKey,
			Description: "API key for " + res.Name,
			Secret:      true,
			Env:         env,
		}
		normalized.ParameterOrder = append(normalized.ParameterOrder, res.APIKey)
	case !key.Secret:
		return fmt.Errorf("resource %s: API key parameter %s must be secret", res.Name, res.APIKey)
	}

	if res.Kind == KindGitHubModels {
		if res.EndpointParameter != "" {
			return fmt.Errorf("resource %s: github-models resources use a fixed endpoint", res.Name)
		}
		res.ConnectionString = expression.GitHubModelsTemplate(res.APIKey, res.Model)
	} else {
		if res.EndpointParameter != "" {
			if _, ok := normalized.Parameters[res.EndpointParameter]; !ok {
				return fmt.Errorf("resource %s: endpoint parameter %s is not declared", res.Name, res.EndpointParameter)
			}
		}
		res.ConnectionString = expression.OpenAITemplate(res.EndpointParameter, res.APIKey, res.Model)
	}
	res.Kind = KindConnectionEndpoint
	return nil
}

func normalizeTargets(normalized *model.NormalizedTopology, resource, field string, targets []string) ([]string, error) {
	seen := make(map[string]bool, len(targets))
	out := make([]string, 0, len(targets))
	for _, target := range targets {
		if target == resource {
			return nil, fmt.Errorf("resource %s: %s to itself", resource, field)
		}
		if _, ok := normalized.Resources[target]; !ok {
			return nil, fmt.Errorf("resource %s: %s target %s is not declared", resource, field, target)
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out, nil
}

func normalizeValue(normalized *model.NormalizedTopology, v model.ConfigValue) (model.ConfigValue, error) {
	switch {
	case v.Parameter != "":
		if _, ok := normalized.Parameters[v.Parameter]; !ok {
			return v, fmt.Errorf("parameter %s is not declared", v.Parameter)
		}
	case v.Endpoint != "":
		if v.Scheme == "" {
			v.Scheme = "https"
		}
		if err := topology.ValidateScheme(v.Scheme); err != nil {
			return v, err
		}
		if _, ok := normalized.Resources[v.Endpoint]; !ok {
			return v, fmt.Errorf("endpoint target %s is not declared", v.Endpoint)
		}
	case v.ConnectionString != "":
		if _, ok := normalized.Resources[v.ConnectionString]; !ok {
			return v, fmt.Errorf("connection string source %s is not declared", v.ConnectionString)
		}
	}
	return v, nil
}

func checkName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s must have a name", kind)
	}
	if !nameRE.MatchString(name) {
		return fmt.Errorf("%s name %q must be a lowercase DNS label", kind, name)
	}
	return nil
}
