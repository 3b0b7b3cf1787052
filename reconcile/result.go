package reconcile

import (
	"encoding/json"
	"time"
)

// Result is the outcome for one tenant. Err and Kind are set only when
// Success is false.
type Result struct {
	TenantID string
	Success  bool
	Payload  json.RawMessage
	Err      error
	Kind     string // error kind, empty on success
	Duration time.Duration
}

// Successes filters results down to the tenants that returned data.
func Successes(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

// Failures filters results down to the tenants that failed.
func Failures(results []Result) []Result {
	out := make([]Result, 0)
	for _, r := range results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}
