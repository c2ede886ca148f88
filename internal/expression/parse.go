package expression

import (
	"fmt"
	"strings"
)

// Lookup classifies a placeholder name as a parameter or resource reference.
// It returns false when the name is not declared.
type Lookup func(name string) (FragmentKind, bool)

// Parse turns a template such as "Endpoint={endpoint};Key={key}" into an
// expression. Placeholders are resolved through lookup; "{{" and "}}" produce
// literal braces.
func Parse(template string, lookup Lookup) (*Expression, error) {
	var fragments []Fragment
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			fragments = append(fragments, Lit(literal.String()))
			literal.Reset()
		}
	}

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				literal.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated placeholder at offset %d in %q", i, template)
			}
			name := strings.TrimSpace(template[i+1 : i+1+end])
			if name == "" {
				return nil, fmt.Errorf("empty placeholder at offset %d in %q", i, template)
			}
			if lookup == nil {
				return nil, fmt.Errorf("unknown reference %q in %q", name, template)
			}
			kind, ok := lookup(name)
			if !ok {
				return nil, fmt.Errorf("unknown reference %q in %q", name, template)
			}
			flush()
			fragments = append(fragments, Fragment{Kind: kind, Name: name})
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				literal.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("unmatched '}' at offset %d in %q", i, template)
		default:
			literal.WriteByte(c)
		}
	}
	flush()

	return New(fragments...), nil
}

// GitHubModelsEndpoint is the inference endpoint used for GitHub Models
// connections.
const GitHubModelsEndpoint = "https://models.github.ai/inference"

// OpenAITemplate builds the connection string template for an OpenAI
// compatible endpoint. An empty endpointParam selects the default OpenAI
// endpoint and omits the Endpoint segment.
func OpenAITemplate(endpointParam, keyParam, model string) string {
	if endpointParam == "" {
		return fmt.Sprintf("Key={%s};Model=%s", keyParam, Escape(model))
	}
	return fmt.Sprintf("Endpoint={%s};Key={%s};Model=%s", endpointParam, keyParam, Escape(model))
}

// GitHubModelsTemplate builds the connection string template for GitHub Models.
func GitHubModelsTemplate(keyParam, model string) string {
	return fmt.Sprintf("Endpoint=%s;Key={%s};Model=%s", Escape(GitHubModelsEndpoint), keyParam, Escape(model))
}
