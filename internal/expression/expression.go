// Package expression implements connection string expressions: ordered
// templates of literal text and references to parameters or resources that
// evaluate to a single string once every reference has a value.
package expression

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// FragmentKind identifies what a fragment refers to.
type FragmentKind int

const (
	FragmentLiteral FragmentKind = iota
	FragmentParameter
	FragmentResource
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentLiteral:
		return "literal"
	case FragmentParameter:
		return "parameter"
	case FragmentResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Fragment is one piece of an expression.
type Fragment struct {
	Kind FragmentKind
	// Text holds the literal text for FragmentLiteral.
	Text string
	// Name holds the referenced parameter or resource name.
	Name string
}

// Lit returns a literal fragment.
func Lit(text string) Fragment { return Fragment{Kind: FragmentLiteral, Text: text} }

// Param returns a parameter reference fragment.
func Param(name string) Fragment { return Fragment{Kind: FragmentParameter, Name: name} }

// Res returns a resource reference fragment, which evaluates to the
// resource's own connection string.
func Res(name string) Fragment { return Fragment{Kind: FragmentResource, Name: name} }

// Source supplies values for parameter and resource fragments.
type Source interface {
	ParameterValue(ctx context.Context, name string) (string, error)
	ConnectionString(ctx context.Context, resource string) (string, error)
}

// Expression is an immutable, ordered sequence of fragments.
type Expression struct {
	fragments []Fragment
}

// New creates an expression from fragments. Adjacent literals are merged.
func New(fragments ...Fragment) *Expression {
	merged := make([]Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Kind == FragmentLiteral {
			if f.Text == "" {
				continue
			}
			if n := len(merged); n > 0 && merged[n-1].Kind == FragmentLiteral {
				merged[n-1].Text += f.Text
				continue
			}
		}
		merged = append(merged, f)
	}
	return &Expression{fragments: merged}
}

// Fragments returns a copy of the expression's fragments.
func (e *Expression) Fragments() []Fragment {
	out := make([]Fragment, len(e.fragments))
	copy(out, e.fragments)
	return out
}

// Parameters returns the names of referenced parameters in order of appearance.
func (e *Expression) Parameters() []string {
	return e.names(FragmentParameter)
}

// Resources returns the names of referenced resources in order of appearance.
func (e *Expression) Resources() []string {
	return e.names(FragmentResource)
}

func (e *Expression) names(kind FragmentKind) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range e.fragments {
		if f.Kind == kind && !seen[f.Name] {
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	return names
}

// IsLiteral reports whether the expression has no references.
func (e *Expression) IsLiteral() bool {
	for _, f := range e.fragments {
		if f.Kind != FragmentLiteral {
			return false
		}
	}
	return true
}

// String renders the expression back into template form.
func (e *Expression) String() string {
	var sb strings.Builder
	for _, f := range e.fragments {
		if f.Kind == FragmentLiteral {
			sb.WriteString(Escape(f.Text))
			continue
		}
		sb.WriteString("{" + f.Name + "}")
	}
	return sb.String()
}

// Evaluate resolves every fragment and concatenates the results. Fragments are
// resolved concurrently; the first failure cancels the rest and is returned.
func (e *Expression) Evaluate(ctx context.Context, src Source) (string, error) {
	values := make([]string, len(e.fragments))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range e.fragments {
		if f.Kind == FragmentLiteral {
			values[i] = f.Text
			continue
		}
		g.Go(func() error {
			v, err := resolveFragment(gctx, src, f)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return strings.Join(values, ""), nil
}

func resolveFragment(ctx context.Context, src Source, f Fragment) (string, error) {
	switch f.Kind {
	case FragmentParameter:
		v, err := src.ParameterValue(ctx, f.Name)
		if err != nil {
			return "", wrapParameterError(ctx, f.Name, err)
		}
		return v, nil
	case FragmentResource:
		v, err := src.ConnectionString(ctx, f.Name)
		if err != nil {
			return "", wrapUpstreamError(ctx, f.Name, err)
		}
		return v, nil
	default:
		return "", fmt.Errorf("unsupported fragment kind %s", f.Kind)
	}
}

// Escape doubles braces so text can be embedded literally in a template.
func Escape(text string) string {
	text = strings.ReplaceAll(text, "{", "{{")
	return strings.ReplaceAll(text, "}", "}}")
}
