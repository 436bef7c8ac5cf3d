package supervisor

import (
	"context"
	"sort"
	"time"
)

// DefaultProbeTimeout bounds a single health check (grounded on the
// teacher's channel-probe timeout of 5s per adapter).
const DefaultProbeTimeout = 5 * time.Second

// Check is one named startup health check (persistent store reachable,
// clock synced, vendor profile configured, ...).
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result is one check's outcome.
type Result struct {
	Name  string
	OK    bool
	Error string
}

// RunChecks runs every check with its own bounded timeout and returns
// results sorted by name, so `doctor` output is deterministic.
func RunChecks(ctx context.Context, checks []Check, timeout time.Duration) []Result {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	sorted := make([]Check, len(checks))
	copy(sorted, checks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	results := make([]Result, 0, len(sorted))
	for _, c := range sorted {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c.Run(probeCtx)
		cancel()
		if err != nil {
			results = append(results, Result{Name: c.Name, OK: false, Error: err.Error()})
			continue
		}
		results = append(results, Result{Name: c.Name, OK: true})
	}
	return results
}

// AllOK reports whether every result succeeded.
func AllOK(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
