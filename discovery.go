package instmgr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Runner discovers instance configuration files in a directory and drives
// each one, independently, through the requested lifecycle action. A failure
// in one instance's pipeline never aborts the processing of the others.
type Runner struct {
	// ConfDir is the directory scanned for instance configuration files
	ConfDir string

	// ConfSuffix is the file name suffix identifying instance configs
	ConfSuffix string

	// Resolver computes each instance's runtime parameters
	Resolver *Resolver

	// Supervisor executes lifecycle actions per instance
	Supervisor *Supervisor

	// Logger receives structured diagnostics
	Logger *slog.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithConfSuffix sets the file name suffix identifying instance configs
func WithConfSuffix(suffix string) RunnerOption {
	return func(r *Runner) {
		r.ConfSuffix = suffix
	}
}

// WithResolver sets the runtime parameter resolver
func WithResolver(res *Resolver) RunnerOption {
	return func(r *Runner) {
		r.Resolver = res
	}
}

// WithSupervisor sets the per-instance supervisor
func WithSupervisor(s *Supervisor) RunnerOption {
	return func(r *Runner) {
		r.Supervisor = s
	}
}

// WithRunnerLogger sets the structured logger
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// NewRunner creates a Runner for the given configuration directory with
// default settings, then applies any provided options
func NewRunner(confDir string, opts ...RunnerOption) *Runner {
	r := &Runner{
		ConfDir:    confDir,
		ConfSuffix: DefaultConfSuffix,
		Logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.Resolver == nil {
		r.Resolver = NewResolver(WithResolverLogger(r.Logger))
	}
	if r.Supervisor == nil {
		r.Supervisor = NewSupervisor(WithLogger(r.Logger))
	}

	return r
}

// Instances returns the configuration file paths in directory-listing order
func (r *Runner) Instances() ([]string, error) {
	entries, err := os.ReadDir(r.ConfDir)
	if err != nil {
		return nil, fmt.Errorf("reading config directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), r.ConfSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(r.ConfDir, e.Name()))
	}
	return paths, nil
}

// Run executes action against every discovered instance, strictly
// sequentially. Port claims are arbitrated with a fresh Arbiter scoped to
// this run; an instance that loses arbitration is skipped with an
// operator-facing message and recorded in the returned MultiError along with
// any other per-instance failures. A directory with no configuration files
// is reported and is not an error: nothing to supervise is not a failure.
func (r *Runner) Run(ctx context.Context, action Action) error {
	paths, err := r.Instances()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintf(r.Supervisor.Out, "no instances defined in %s\n", r.ConfDir)
		return nil
	}

	arbiter := NewArbiter()
	merr := &MultiError{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			merr.Add(err)
			break
		}
		if err := r.runOne(ctx, arbiter, path, action); err != nil {
			r.Logger.Error("instance pass failed", "config", path, "action", action.String(), "error", err)
			merr.Add(err)
		}
	}
	return merr.Err()
}

// runOne processes a single configuration file: parse, resolve, arbitrate,
// then execute the requested action
func (r *Runner) runOne(ctx context.Context, arbiter *Arbiter, path string, action Action) error {
	name := strings.TrimSuffix(filepath.Base(path), r.ConfSuffix)

	cfg, warnings, err := ParseConfigFile(path)
	if err != nil {
		return &InstanceError{Instance: name, Action: action, Err: err}
	}
	for _, w := range warnings {
		r.Logger.Warn("config parse warning", "instance", name, "config", path, "warning", w.String())
	}

	rp, err := r.Resolver.Resolve(name, cfg, path)
	if err != nil {
		return &InstanceError{Instance: name, Action: action, Err: err}
	}

	if err := arbiter.Claim(name, rp.Ports); err != nil {
		claimant, _ := arbiter.ClaimedBy()
		fmt.Fprintf(r.Supervisor.Out, "%s: default ports already claimed by %s; skipping %s\n", name, claimant, path)
		return err
	}

	return r.Supervisor.Do(ctx, action, rp)
}
