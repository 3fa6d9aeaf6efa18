package instmgr

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testParams returns minimal RuntimeParams rooted in a temp dir
func testParams(t *testing.T) *RuntimeParams {
	t.Helper()
	dir := t.TempDir()
	return &RuntimeParams{
		Name:        "t1",
		ConfPath:    filepath.Join(dir, "t1.conf"),
		PIDFilePath: filepath.Join(dir, "pid_file"),
		DataDir:     filepath.Join(dir, "data"),
		LogFilePath: filepath.Join(dir, "data", "log_file"),
		Ports:       Ports{Driver: DefaultDriverPort, Cluster: DefaultClusterPort, HTTP: DefaultHTTPPort},
		Args:        []string{"--config-file", filepath.Join(dir, "t1.conf")},
	}
}

// testSupervisor builds a Supervisor that launches a no-op binary and
// captures status lines
func testSupervisor(t *testing.T, out *bytes.Buffer) *Supervisor {
	t.Helper()
	return NewSupervisor(
		WithBinary("true"),
		WithTracker(NewTracker(WithPollInterval(10*time.Millisecond))),
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))),
		WithOutput(out),
	)
}

func TestStatusNoPIDFile(t *testing.T) {
	var out bytes.Buffer
	sup := testSupervisor(t, &out)
	rp := testParams(t)

	status, pid, err := sup.Status(rp)
	require.NoError(t, err)
	assert.Equal(t, StatusNotRunning, status)
	assert.Zero(t, pid)
}

func TestStatusRunning(t *testing.T) {
	var out bytes.Buffer
	sup := testSupervisor(t, &out)
	rp := testParams(t)

	require.NoError(t, os.WriteFile(rp.PIDFilePath, []byte(strconv.Itoa(os.Getpid())), 0o644))

	status, pid, err := sup.Status(rp)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)
	assert.Equal(t, os.Getpid(), pid)
}

func TestStatusCrashed(t *testing.T) {
	var out bytes.Buffer
	sup := testSupervisor(t, &out)
	rp := testParams(t)

	dead := deadPID(t)
	require.NoError(t, os.WriteFile(rp.PIDFilePath, []byte(strconv.Itoa(dead)), 0o644))

	status, pid, err := sup.Status(rp)
	require.NoError(t, err)
	assert.Equal(t, StatusCrashed, status)
	assert.Equal(t, dead, pid)
}

func TestStartIdempotentWhenRunning(t *testing.T) {
	var out bytes.Buffer
	sup := testSupervisor(t, &out)
	rp := testParams(t)

	// A live process already holds the pid file: no second launch.
	require.NoError(t, os.WriteFile(rp.PIDFilePath, []byte(strconv.Itoa(os.Getpid())), 0o644))

	res, err := sup.Start(context.Background(), rp)
	require.NoError(t, err)
	assert.Equal(t, StartAlreadyRunning, res)
	assert.Contains(t, out.String(), "t1: already started")

	// The pid file is untouched.
	pid, err := ReadPIDFile(rp.PIDFilePath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestStartRemovesStalePIDFile(t *testing.T) {
	var out bytes.Buffer
	sup := testSupervisor(t, &out)
	rp := testParams(t)

	require.NoError(t, os.WriteFile(rp.PIDFilePath, []byte(strconv.Itoa(deadPID(t))), 0o644))

	res, err := sup.Start(context.Background(), rp)
	require.NoError(t, err)
	assert.Equal(t, StartLaunched, res)

	_, err = os.Stat(rp.PIDFilePath)
	assert.True(t, os.IsNotExist(err), "stale pid file should be removed before launch")
	assert.Contains(t, out.String(), "t1: starting, logging to "+rp.LogFilePath)
}

func TestStartNotBlockedByDetachedChild(t *testing.T) {
	var out bytes.Buffer
	sup := testSupervisor(t, &out)
	sup.Binary = "sh"
	sup.DaemonFlag = "-c"
	rp := testParams(t)
	rp.Args = []string{"sleep 5 & exit 0"}

	// The launch frontend exits at once while its background child lives on
	// with the inherited descriptors. Start must return with the frontend.
	begin := time.Now()
	res, err := sup.Start(context.Background(), rp)
	elapsed := time.Since(begin)

	require.NoError(t, err)
	assert.Equal(t, StartLaunched, res)
	assert.Less(t, elapsed, 2*time.Second, "Start waited on the detached child")
}

func TestStartLaunchFailure(t *testing.T) {
	var out bytes.Buffer
	sup := testSupervisor(t, &out)
	sup.Binary = filepath.Join(t.TempDir(), "missing-binary")
	rp := testParams(t)

	res, err := sup.Start(context.Background(), rp)
	require.Error(t, err)
	assert.Equal(t, StartUnknown, res)

	var ierr *InstanceError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "t1", ierr.Instance)
	assert.Equal(t, ActionStart, ierr.Action)
}

func TestStopReportsOutcome(t *testing.T) {
	var out bytes.Buffer
	sup := testSupervisor(t, &out)
	rp := testParams(t)

	res, err := sup.Stop(context.Background(), rp)
	require.NoError(t, err)
	assert.Equal(t, StopNotRunning, res)
	assert.Contains(t, out.String(), "t1: not running")
}

func TestRestartWithNothingRunning(t *testing.T) {
	var out bytes.Buffer
	sup := testSupervisor(t, &out)
	rp := testParams(t)

	require.NoError(t, sup.Restart(context.Background(), rp))
	assert.Contains(t, out.String(), "t1: not running")
	assert.Contains(t, out.String(), "t1: started")
}

func TestDoStatusLines(t *testing.T) {
	tests := []struct {
		name string
		prep func(t *testing.T, rp *RuntimeParams)
		want string
	}{
		{
			name: "not running",
			prep: func(t *testing.T, rp *RuntimeParams) {},
			want: "t1: not running",
		},
		{
			name: "running",
			prep: func(t *testing.T, rp *RuntimeParams) {
				require.NoError(t, os.WriteFile(rp.PIDFilePath, []byte(strconv.Itoa(os.Getpid())), 0o644))
			},
			want: "t1: running (pid ",
		},
		{
			name: "crashed",
			prep: func(t *testing.T, rp *RuntimeParams) {
				require.NoError(t, os.WriteFile(rp.PIDFilePath, []byte(strconv.Itoa(deadPID(t))), 0o644))
			},
			want: "t1: crashed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			sup := testSupervisor(t, &out)
			rp := testParams(t)
			tt.prep(t, rp)

			require.NoError(t, sup.Do(context.Background(), ActionStatus, rp))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
