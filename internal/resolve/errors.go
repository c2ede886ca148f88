package resolve

import (
	"errors"
	"fmt"

	"github.com/sourceplane/apphost/internal/topology"
)

// ErrUnsupportedEnvironmentCombination matches every
// *UnsupportedEnvironmentCombination.
var ErrUnsupportedEnvironmentCombination = errors.New("unsupported environment combination")

// UnsupportedEnvironmentCombination reports a cross-environment endpoint
// reference whose target environment has no resolution policy.
type UnsupportedEnvironmentCombination struct {
	Resource string
	Key      string
	Target   string
	// TargetEnvironment is empty when the target is not assigned to any
	// environment.
	TargetEnvironment string
	TargetKind        topology.EnvironmentKind
}

func (e *UnsupportedEnvironmentCombination) Error() string {
	if e.TargetEnvironment == "" {
		return fmt.Sprintf("resource %s: config entry %s references %s which is not assigned to an environment: %s",
			e.Resource, e.Key, e.Target, ErrUnsupportedEnvironmentCombination)
	}
	return fmt.Sprintf("resource %s: config entry %s references %s in environment %s of kind %s: %s",
		e.Resource, e.Key, e.Target, e.TargetEnvironment, e.TargetKind, ErrUnsupportedEnvironmentCombination)
}

func (e *UnsupportedEnvironmentCombination) Is(target error) bool {
	return target == ErrUnsupportedEnvironmentCombination
}

// ErrMismatchedServiceKey matches every *MismatchedServiceKey.
var ErrMismatchedServiceKey = errors.New("service key does not match endpoint reference")

// MismatchedServiceKey reports a service key naming a different resource or
// scheme than its endpoint reference, where the reference crosses
// environments and so has no local form.
type MismatchedServiceKey struct {
	Resource string
	Key      string
	Target   string
	Scheme   string
}

func (e *MismatchedServiceKey) Error() string {
	return fmt.Sprintf("resource %s: config entry %s references %s over %s in another environment: %s",
		e.Resource, e.Key, e.Target, e.Scheme, ErrMismatchedServiceKey)
}

func (e *MismatchedServiceKey) Is(target error) bool {
	return target == ErrMismatchedServiceKey
}
