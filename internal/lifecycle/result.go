package lifecycle

import "time"

// ResourceResult is the outcome of one resource in a publish pass.
type ResourceResult struct {
	Name        string
	Environment string
	State       State
	// Env is the flattened configuration handed to the resource's process.
	Env map[string]string
	// Secrets marks Env keys whose value derives from a secret parameter.
	Secrets          map[string]bool
	ConnectionString string
	// ConnectionStringSecret reports whether the connection string embeds a
	// secret parameter.
	ConnectionStringSecret bool
	Err                    error
	// RootCause is set when this resource is where a failure originated.
	RootCause bool
}

// Result collects the outcome of a publish pass.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	// Order lists resources with every dependency before its dependents.
	Order     []string
	Resources map[string]*ResourceResult
}

// Resource returns the outcome for the named resource.
func (r *Result) Resource(name string) (*ResourceResult, bool) {
	res, ok := r.Resources[name]
	return res, ok
}

// Running reports whether every published resource reached Running.
func (r *Result) Running() bool {
	for _, res := range r.Resources {
		if res.State != StateRunning {
			return false
		}
	}
	return true
}

// Counts returns the number of resources in each state.
func (r *Result) Counts() map[State]int {
	counts := make(map[State]int, 3)
	for _, res := range r.Resources {
		counts[res.State]++
	}
	return counts
}
