package params

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sourceplane/apphost/internal/topology"
)

// Lookup names the key a provider is asked for.
type Lookup struct {
	Provider Provider
	Key      string
}

func (l Lookup) String() string {
	return l.Provider.Name() + ":" + l.Key
}

// MissingValueError reports that no source produced a value for a parameter.
type MissingValueError struct {
	Parameter string
	Tried     []string
}

func (e *MissingValueError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("parameter %s has no value source", e.Parameter)
	}
	return fmt.Sprintf("parameter %s has no value (tried %s)", e.Parameter, strings.Join(e.Tried, ", "))
}

func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

// Chain returns a value provider for the named parameter that tries each
// lookup in order. A lookup reporting ErrNotFound falls through to the next;
// any other error stops the chain.
func Chain(parameter string, lookups ...Lookup) topology.ValueProvider {
	return func(ctx context.Context) (string, error) {
		tried := make([]string, 0, len(lookups))
		for _, l := range lookups {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			val, err := l.Provider.Get(ctx, l.Key)
			if err == nil {
				return val, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return "", fmt.Errorf("failed to read %s: %w", l, err)
			}
			tried = append(tried, l.String())
		}
		return "", &MissingValueError{Parameter: parameter, Tried: tried}
	}
}

const redacted = "********"

// Redact masks a secret value for display. Empty values stay empty so a
// missing secret is still visible as such.
func Redact(value string) string {
	if value == "" {
		return ""
	}
	return redacted
}
