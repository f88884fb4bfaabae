// Package probe runs startup checks and reports them for /health.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a check that sets no Timeout of its own.
const DefaultTimeout = 5 * time.Second

// CheckFunc is a function that performs a health check.
// It returns nil if the check passes, or an error if it fails.
type CheckFunc func(ctx context.Context) error

// Probe represents a single startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // If true, a failure here should prevent application startup.
	Timeout  time.Duration
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Status is the JSON shape of a Result.
type Status struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Critical   bool   `json:"critical"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// Run executes the probes concurrently and returns their results in input
// order. Each check gets its own timeout so one hung dependency cannot stall
// the others.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			timeout := p.Timeout
			if timeout <= 0 {
				timeout = DefaultTimeout
			}
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := p.Check(checkCtx)
			results[i] = Result{
				Probe:    p,
				Error:    err,
				Duration: time.Since(start),
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FailedCritical joins the errors of failed critical probes, or returns nil.
func FailedCritical(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Error != nil && r.Probe.Critical {
			errs = append(errs, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
		}
	}
	return errors.Join(errs...)
}

// AnalyzeResults logs one line per probe and returns FailedCritical.
func AnalyzeResults(results []Result) error {
	slog.Info("Startup checks", "count", len(results))
	for _, r := range results {
		took := r.Duration.Round(time.Millisecond)
		if r.Error != nil {
			slog.Error("Check failed", "check", r.Probe.Name, "critical", r.Probe.Critical, "took", took, "error", r.Error)
			continue
		}
		slog.Info("Check passed", "check", r.Probe.Name, "took", took)
	}
	return FailedCritical(results)
}

// Report converts results for JSON output.
func Report(results []Result) []Status {
	out := make([]Status, len(results))
	for i, r := range results {
		out[i] = Status{
			Name:       r.Probe.Name,
			OK:         r.Error == nil,
			Critical:   r.Probe.Critical,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Error != nil {
			out[i].Error = r.Error.Error()
		}
	}
	return out
}

// Pinger is anything with a liveness ping, such as *sql.DB or a Redis store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a ping method with the Ping(ctx) spelling.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Ping checks a Pinger.
func Ping(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.PingContext(ctx)
	}
}

// WritableDir checks that dir exists (creating it if needed) and accepts files.
func WritableDir(dir string) CheckFunc {
	return func(_ context.Context) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return fmt.Errorf("not writable: %w", err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(filepath.Clean(name))
	}
}
