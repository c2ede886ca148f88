package lifecycle

import (
	"github.com/sourceplane/apphost/internal/expression"
	"github.com/sourceplane/apphost/internal/topology"
)

// secretKeys returns the config keys of r whose value embeds a secret
// parameter, directly or through an upstream connection string.
func (p *Publisher) secretKeys(r *topology.Resource) map[string]bool {
	out := make(map[string]bool)
	for key, v := range r.Config() {
		switch v.Kind {
		case topology.ValueParameter:
			if p.secretParameter(v.Parameter) {
				out[key] = true
			}
		case topology.ValueExpression:
			if v.Expression != nil && p.secretExpression(v.Expression) {
				out[key] = true
			}
		}
	}
	return out
}

func (p *Publisher) secretExpression(expr *expression.Expression) bool {
	for _, name := range expr.Parameters() {
		if p.secretParameter(name) {
			return true
		}
	}
	for _, name := range expr.Resources() {
		r, ok := p.graph.Resource(name)
		if ok && r.ConnectionString != nil && p.secretExpression(r.ConnectionString) {
			return true
		}
	}
	return false
}

func (p *Publisher) secretParameter(name string) bool {
	param, ok := p.graph.Parameter(name)
	return ok && param.Secret
}
