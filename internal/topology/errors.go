package topology

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycleDetected    = errors.New("cycle detected")
	ErrAlreadyExists    = errors.New("already declared")
	ErrUnknownName      = errors.New("not declared")
	ErrInvalidReference = errors.New("invalid reference")
)

// CycleError reports a wait-for cycle. Cycle starts and ends with the same
// resource.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in resource dependencies: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}
