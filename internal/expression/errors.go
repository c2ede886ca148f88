package expression

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrParameterResolutionFailed = errors.New("parameter resolution failed")
	ErrUpstreamResourceFailed    = errors.New("upstream resource failed")
)

// ParameterResolutionFailed reports that a parameter's value provider could
// not produce a value.
type ParameterResolutionFailed struct {
	Parameter string
	Err       error
}

func (e *ParameterResolutionFailed) Error() string {
	return fmt.Sprintf("parameter %q could not be resolved: %v", e.Parameter, e.Err)
}

func (e *ParameterResolutionFailed) Unwrap() []error {
	return []error{ErrParameterResolutionFailed, e.Err}
}

// UpstreamResourceFailed reports that a resource this one depends on ended
// in the Failed state. Err carries the upstream root cause.
type UpstreamResourceFailed struct {
	Resource string
	Err      error
}

func (e *UpstreamResourceFailed) Error() string {
	return fmt.Sprintf("upstream resource %q failed: %v", e.Resource, e.Err)
}

func (e *UpstreamResourceFailed) Unwrap() []error {
	return []error{ErrUpstreamResourceFailed, e.Err}
}

// wrapParameterError leaves cancellation and already classified errors alone.
func wrapParameterError(ctx context.Context, name string, err error) error {
	if cancelled(ctx, err) {
		return err
	}
	var paramErr *ParameterResolutionFailed
	if errors.As(err, &paramErr) && paramErr.Parameter == name {
		return err
	}
	return &ParameterResolutionFailed{Parameter: name, Err: err}
}

func wrapUpstreamError(ctx context.Context, name string, err error) error {
	if cancelled(ctx, err) {
		return err
	}
	var upstreamErr *UpstreamResourceFailed
	if errors.As(err, &upstreamErr) && upstreamErr.Resource == name {
		return err
	}
	return &UpstreamResourceFailed{Resource: name, Err: err}
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
