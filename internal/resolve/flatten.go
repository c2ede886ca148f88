package resolve

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/sourceplane/apphost/internal/expression"
	"github.com/sourceplane/apphost/internal/topology"
)

// LocalURL is the form a same-environment endpoint reference takes once
// flattened: siblings reach each other by bare name.
func LocalURL(target, scheme string) string {
	return scheme + "://" + target
}

// Flatten evaluates entries into the plain string map handed to a process
// as its environment. Parameter references and expressions are resolved
// through src. Entries are evaluated in key order and the first failure is
// returned.
func Flatten(ctx context.Context, entries map[string]topology.Value, src expression.Source) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, key := range slices.Sorted(maps.Keys(entries)) {
		value := entries[key]
		var expr *expression.Expression
		switch value.Kind {
		case topology.ValueLiteral:
			out[key] = value.Text
			continue
		case topology.ValueEndpoint:
			out[key] = LocalURL(value.Target, value.Scheme)
			continue
		case topology.ValueParameter:
			expr = expression.New(expression.Param(value.Parameter))
		case topology.ValueExpression:
			expr = value.Expression
		}
		if expr == nil {
			return nil, fmt.Errorf("config entry %s has no evaluable value", key)
		}
		s, err := expr.Evaluate(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("config entry %s: %w", key, err)
		}
		out[key] = s
	}
	return out, nil
}
