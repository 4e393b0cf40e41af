// Package health probes the collaborators a refund run depends on.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Pinger is a dependency that can be probed for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Report is the outcome of a probe run. Checks maps dependency name to "ok"
// or the error text.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// OK reports whether every dependency answered.
func (r Report) OK() bool { return r.Status == "ok" }

// Probe pings a set of named dependencies concurrently.
type Probe struct {
	Checks  map[string]Pinger
	Timeout time.Duration
}

// Run pings every dependency, each under its own timeout.
func (p Probe) Run(ctx context.Context) Report {
	names := make([]string, 0, len(p.Checks))
	for name := range p.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, pinger Pinger) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, p.timeout())
			defer cancel()
			if err := pinger.Ping(callCtx); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = "ok"
		}(i, p.Checks[name])
	}
	wg.Wait()

	report := Report{Status: "ok", Checks: make(map[string]string, len(names))}
	for i, name := range names {
		report.Checks[name] = results[i]
		if results[i] != "ok" {
			report.Status = "degraded"
		}
	}
	return report
}

func (p Probe) timeout() time.Duration {
	if p.Timeout <= 0 {
		return 2 * time.Second
	}
	return p.Timeout
}
