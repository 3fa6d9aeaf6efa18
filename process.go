package instmgr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// StopResult represents the outcome of a stop sequence
type StopResult int

const (
	// StopUnknown represents an indeterminate outcome
	StopUnknown StopResult = iota
	// StopNotRunning means no pid file existed; nothing to do
	StopNotRunning
	// StopAlreadyStopped means the pid file pointed at a dead process and
	// the stale file was removed
	StopAlreadyStopped
	// StopStopped means the process was signaled and has exited
	StopStopped
)

// String returns the string representation of a StopResult
func (s StopResult) String() string {
	switch s {
	case StopNotRunning:
		return "not running"
	case StopAlreadyStopped:
		return "already stopped"
	case StopStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsAlive reports whether a process with the given pid currently exists.
// The probe sends signal 0; any inability to deliver it is treated as
// "not alive" for the check being performed.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// ReadPIDFile reads a pid file: a plain text file holding a single integer
// process id, tolerating surrounding whitespace
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrPIDFileMalformed, path)
	}
	return pid, nil
}

// Tracker answers liveness questions for pid-file-tracked processes and
// performs the stop sequence: a graceful interrupt followed by a bounded
// poll until the process exits.
type Tracker struct {
	// PollInterval is the delay between liveness probes during a stop wait
	PollInterval time.Duration

	// StopTimeout, when nonzero, bounds the stop wait: after it elapses the
	// process receives SIGKILL and the wait continues. Zero keeps the
	// historical behavior of waiting indefinitely for a graceful exit.
	StopTimeout time.Duration

	// Progress, when set, is invoked once per poll cycle while waiting for
	// a process to exit
	Progress func(name string, pid int)
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithPollInterval sets the delay between liveness probes
func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.PollInterval = d
	}
}

// WithStopTimeout bounds the stop wait, escalating to SIGKILL once it elapses
func WithStopTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.StopTimeout = d
	}
}

// WithStopProgress sets a callback invoked once per poll cycle during a stop wait
func WithStopProgress(fn func(name string, pid int)) TrackerOption {
	return func(t *Tracker) {
		t.Progress = fn
	}
}

// NewTracker creates a Tracker with default settings
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		PollInterval: DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.PollInterval <= 0 {
		t.PollInterval = DefaultPollInterval
	}

	return t
}

// Stop performs the stop sequence for the instance whose pid file is at
// pidFilePath. The pid is looked up fresh on every call; nothing is cached
// across actions. A missing pid file reports StopNotRunning. A pid file
// naming a dead process is removed and reports StopAlreadyStopped. Otherwise
// the process receives an interrupt and Stop polls until it exits, invoking
// Progress each cycle. With StopTimeout unset the wait is unbounded; the
// context is the only way to abandon it.
func (t *Tracker) Stop(ctx context.Context, name, pidFilePath string) (StopResult, error) {
	pid, err := ReadPIDFile(pidFilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StopNotRunning, nil
		}
		return StopUnknown, err
	}

	if !IsAlive(pid) {
		_ = os.Remove(pidFilePath)
		return StopAlreadyStopped, nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopUnknown, fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := proc.Signal(os.Interrupt); err != nil {
		// The process vanished between the probe and the signal
		_ = os.Remove(pidFilePath)
		return StopAlreadyStopped, nil
	}

	var escalate <-chan time.Time
	if t.StopTimeout > 0 {
		timer := time.NewTimer(t.StopTimeout)
		defer timer.Stop()
		escalate = timer.C
	}

	ticker := time.NewTicker(t.PollInterval)
	defer ticker.Stop()

	for IsAlive(pid) {
		select {
		case <-ctx.Done():
			return StopUnknown, ctx.Err()
		case <-escalate:
			_ = proc.Signal(syscall.SIGKILL)
			escalate = nil
		case <-ticker.C:
			if t.Progress != nil && IsAlive(pid) {
				t.Progress(name, pid)
			}
		}
	}

	return StopStopped, nil
}
