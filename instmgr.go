package instmgr

import (
	"fmt"
	"time"
)

// Builtin default ports. An instance that resolves any one of its ports to
// the corresponding builtin value is considered to be using the default port
// set for arbitration purposes.
const (
	// DefaultDriverPort is the builtin client driver port
	DefaultDriverPort = 28015

	// DefaultClusterPort is the builtin intracluster port
	DefaultClusterPort = 29015

	// DefaultHTTPPort is the builtin web administration port
	DefaultHTTPPort = 8080
)

// Filesystem conventions with defaults that can be overridden
const (
	// DefaultRuntimeRoot is the root directory for per-instance runtime state
	DefaultRuntimeRoot = "/var/run/instmgr"

	// DefaultStorageRoot is the root directory for per-instance data directories
	DefaultStorageRoot = "/var/lib/instmgr"

	// DefaultConfDir is the directory scanned for instance configuration files
	DefaultConfDir = "/etc/instmgr/instances.d"

	// DefaultConfSuffix is the file name suffix identifying instance configs
	DefaultConfSuffix = ".conf"

	// DefaultPIDFileName is the pid file name under the instance runtime dir
	DefaultPIDFileName = "pid_file"

	// DefaultLogFileName is the log file name under the instance data dir
	DefaultLogFileName = "log_file"

	// DefaultDataDirName is the data directory name under the instance storage dir
	DefaultDataDirName = "data"
)

// Supervised process defaults
const (
	// DefaultServerBinary is the default path to the supervised server binary
	DefaultServerBinary = "rethinkdb"

	// DefaultDaemonFlag is the flag that makes the server detach on launch
	DefaultDaemonFlag = "--daemon"

	// DefaultRunUser is the service account the server runs as
	DefaultRunUser = "instmgr"

	// DefaultRunGroup is the service group the server runs as
	DefaultRunGroup = "instmgr"

	// DefaultPollInterval is the interval between liveness probes while
	// waiting for a stopped process to exit
	DefaultPollInterval = 1 * time.Second
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for created files
	FileMode = 0o644
)

// Recognized instance configuration keys. Unknown keys are preserved but
// ignored by the resolver.
const (
	KeyRunUser     = "runuser"
	KeyRunGroup    = "rungroup"
	KeyPIDFile     = "pid-file"
	KeyDirectory   = "directory"
	KeyDriverPort  = "driver-port"
	KeyClusterPort = "cluster-port"
	KeyHTTPPort    = "http-port"
	KeyPortOffset  = "port-offset"
	KeyLogFile     = "log-file"
	KeyBind        = "bind"
)

// Action represents a lifecycle action requested for one or more instances
type Action int

const (
	// ActionUnknown represents an unrecognized action
	ActionUnknown Action = iota
	// ActionStart launches instances that are not already running
	ActionStart
	// ActionStop terminates running instances and waits for them to exit
	ActionStop
	// ActionRestart stops and then starts each instance
	ActionRestart
	// ActionForceRestart stops and then starts each instance unconditionally
	ActionForceRestart
	// ActionStatus reports each instance's state without changing it
	ActionStatus
)

// Action string constants
const (
	actionUnknownStr      = "unknown"
	actionStartStr        = "start"
	actionStopStr         = "stop"
	actionRestartStr      = "restart"
	actionForceRestartStr = "force-restart"
	actionStatusStr       = "status"
)

// String returns the string representation of an Action
func (a Action) String() string {
	switch a {
	case ActionStart:
		return actionStartStr
	case ActionStop:
		return actionStopStr
	case ActionRestart:
		return actionRestartStr
	case ActionForceRestart:
		return actionForceRestartStr
	case ActionStatus:
		return actionStatusStr
	default:
		return actionUnknownStr
	}
}

// Actions lists the recognized lifecycle actions in CLI order
func Actions() []Action {
	return []Action{ActionStart, ActionStop, ActionRestart, ActionForceRestart, ActionStatus}
}

// ParseAction converts a CLI action argument into an Action.
// Unrecognized input returns ActionUnknown and an error suitable for usage output.
func ParseAction(s string) (Action, error) {
	switch s {
	case actionStartStr:
		return ActionStart, nil
	case actionStopStr:
		return ActionStop, nil
	case actionRestartStr:
		return ActionRestart, nil
	case actionForceRestartStr:
		return ActionForceRestart, nil
	case actionStatusStr:
		return ActionStatus, nil
	default:
		return ActionUnknown, fmt.Errorf("instmgr: unrecognized action %q", s)
	}
}
