package instmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// StartResult represents the outcome of a start transition
type StartResult int

const (
	// StartUnknown represents an indeterminate outcome
	StartUnknown StartResult = iota
	// StartLaunched means the supervised process was launched
	StartLaunched
	// StartAlreadyRunning means a live process already holds the pid file;
	// no second process is launched
	StartAlreadyRunning
)

// String returns the string representation of a StartResult
func (s StartResult) String() string {
	switch s {
	case StartLaunched:
		return "started"
	case StartAlreadyRunning:
		return "already running"
	default:
		return "unknown"
	}
}

// InstanceStatus is the observed state of one instance, derived entirely
// from its pid file and a fresh liveness probe
type InstanceStatus int

const (
	// StatusNotRunning means the pid file is absent
	StatusNotRunning InstanceStatus = iota
	// StatusCrashed means the pid file exists but the process is dead
	StatusCrashed
	// StatusRunning means the pid file names a live process
	StatusRunning
)

// String returns the string representation of an InstanceStatus
func (s InstanceStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCrashed:
		return "crashed"
	default:
		return "not running"
	}
}

// Supervisor drives single instances through their lifecycle: start, stop,
// restart, and status. It launches the supervised server detached with the
// instance's resolved argument vector and tracks it through its pid file.
type Supervisor struct {
	// Binary is the path to the supervised server binary
	Binary string

	// DaemonFlag is prepended to the argument vector so the server detaches
	DaemonFlag string

	// Tracker performs liveness probes and the stop sequence
	Tracker *Tracker

	// Logger receives structured diagnostics
	Logger *slog.Logger

	// Out receives the per-instance human-readable status lines
	Out io.Writer
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithBinary sets the path to the supervised server binary
func WithBinary(path string) SupervisorOption {
	return func(s *Supervisor) {
		s.Binary = path
	}
}

// WithDaemonFlag sets the flag that makes the server detach on launch
func WithDaemonFlag(flag string) SupervisorOption {
	return func(s *Supervisor) {
		s.DaemonFlag = flag
	}
}

// WithTracker sets the process tracker used for stop and status
func WithTracker(t *Tracker) SupervisorOption {
	return func(s *Supervisor) {
		s.Tracker = t
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.Logger = logger
	}
}

// WithOutput sets the writer for per-instance status lines
func WithOutput(w io.Writer) SupervisorOption {
	return func(s *Supervisor) {
		s.Out = w
	}
}

// NewSupervisor creates a Supervisor with default settings. Unless a Tracker
// is provided, stop-wait progress is reported on the supervisor's output.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		Binary:     DefaultServerBinary,
		DaemonFlag: DefaultDaemonFlag,
		Logger:     slog.Default(),
		Out:        os.Stdout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.Tracker == nil {
		s.Tracker = NewTracker(WithStopProgress(func(name string, pid int) {
			s.report(name, "waiting for pid %d to exit", pid)
		}))
	}

	return s
}

// report emits one human-readable line prefixed with the instance name
func (s *Supervisor) report(name, format string, args ...any) {
	fmt.Fprintf(s.Out, "%s: %s\n", name, fmt.Sprintf(format, args...))
}

// Start launches the instance unless a live process already holds its pid
// file, in which case the start is an idempotent no-op. A stale pid file is
// removed before the launch. The launched process receives the daemon flag
// plus the instance's full argument vector and is responsible for writing
// its own pid file.
func (s *Supervisor) Start(ctx context.Context, rp *RuntimeParams) (StartResult, error) {
	if pid, err := ReadPIDFile(rp.PIDFilePath); err == nil && IsAlive(pid) {
		s.report(rp.Name, "already started (pid %d)", pid)
		return StartAlreadyRunning, nil
	}
	if err := os.Remove(rp.PIDFilePath); err == nil {
		s.Logger.Debug("removed stale pid file", "instance", rp.Name, "path", rp.PIDFilePath)
	}

	s.report(rp.Name, "starting, logging to %s", rp.LogFilePath)

	args := append([]string{s.DaemonFlag}, rp.Args...)
	cmd := exec.CommandContext(ctx, s.Binary, args...)
	// The server runs in its own session with stdio on /dev/null; it logs to
	// its own log file. Leaving stdio nil keeps Run from waiting on pipe fds
	// the daemonized process would otherwise inherit and hold open.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	// With the daemon flag the server forks itself free of the supervisor,
	// so this returns as soon as the launch frontend exits.
	if err := cmd.Run(); err != nil {
		return StartUnknown, &InstanceError{Instance: rp.Name, Action: ActionStart, Err: err}
	}

	s.report(rp.Name, "started")
	return StartLaunched, nil
}

// Stop performs the stop sequence for the instance and reports the outcome
func (s *Supervisor) Stop(ctx context.Context, rp *RuntimeParams) (StopResult, error) {
	res, err := s.Tracker.Stop(ctx, rp.Name, rp.PIDFilePath)
	if err != nil {
		return res, &InstanceError{Instance: rp.Name, Action: ActionStop, Err: err}
	}
	s.report(rp.Name, "%s", res)
	return res, nil
}

// Restart performs the stop phase followed by the start phase for the same
// instance in the same invocation
func (s *Supervisor) Restart(ctx context.Context, rp *RuntimeParams) error {
	if _, err := s.Stop(ctx, rp); err != nil {
		return err
	}
	_, err := s.Start(ctx, rp)
	return err
}

// Status is a pure read of the instance's state: pid file absent means not
// running, pid file present with a dead process means crashed, otherwise
// running. The returned pid is meaningful for StatusRunning and StatusCrashed.
func (s *Supervisor) Status(rp *RuntimeParams) (InstanceStatus, int, error) {
	pid, err := ReadPIDFile(rp.PIDFilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StatusNotRunning, 0, nil
		}
		return StatusNotRunning, 0, &InstanceError{Instance: rp.Name, Action: ActionStatus, Err: err}
	}
	if IsAlive(pid) {
		return StatusRunning, pid, nil
	}
	return StatusCrashed, pid, nil
}

// Do executes the requested lifecycle action against one resolved instance,
// emitting its outcome as a human-readable line. The caller must have
// arbitrated port claims before invoking Do with a start-capable action.
func (s *Supervisor) Do(ctx context.Context, action Action, rp *RuntimeParams) error {
	switch action {
	case ActionStart:
		_, err := s.Start(ctx, rp)
		return err
	case ActionStop:
		_, err := s.Stop(ctx, rp)
		return err
	case ActionRestart, ActionForceRestart:
		return s.Restart(ctx, rp)
	case ActionStatus:
		status, pid, err := s.Status(rp)
		if err != nil {
			return err
		}
		switch status {
		case StatusRunning:
			s.report(rp.Name, "running (pid %d)", pid)
		case StatusCrashed:
			s.report(rp.Name, "crashed (pid file present, process %d dead)", pid)
		default:
			s.report(rp.Name, "not running")
		}
		return nil
	default:
		return &InstanceError{Instance: rp.Name, Action: action, Err: fmt.Errorf("unsupported action")}
	}
}
