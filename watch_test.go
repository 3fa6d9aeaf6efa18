package instmgr

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/renameio/v2"
)

// collectEvent waits for the next ConfEvent or fails the test
func collectEvent(t *testing.T, events <-chan ConfEvent) ConfEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for conf event")
	}
	return ConfEvent{}
}

func TestWatchConfDir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	r := testRunner(t, dir, &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, cleanup, err := r.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			t.Errorf("cleanup() error = %v", err)
		}
	}()

	b := NewInstanceBuilder("t1", dir).WithPortOffset(5)
	if err := b.Build(); err != nil {
		t.Fatal(err)
	}

	ev := collectEvent(t, events)
	if ev.Err != nil {
		t.Fatalf("event error = %v", ev.Err)
	}
	if ev.Instance != "t1" || ev.Removed {
		t.Errorf("event = %+v, want change for t1", ev)
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	r := testRunner(t, dir, &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, cleanup, err := r.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cleanup() }()

	if err := renameio.WriteFile(dir+"/notes.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := renameio.WriteFile(dir+"/t2.conf", []byte("port-offset=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Only the .conf write surfaces.
	ev := collectEvent(t, events)
	if ev.Instance != "t2" {
		t.Errorf("event = %+v, want change for t2", ev)
	}
}

func TestWatchRemove(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	r := testRunner(t, dir, &out)

	path := writeConfFile(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, cleanup, err := r.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cleanup() }()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	ev := collectEvent(t, events)
	if !ev.Removed || ev.Instance != "t1" {
		t.Errorf("event = %+v, want removal of t1", ev)
	}
}

func TestWatchCleanupDuringDebounce(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	r := testRunner(t, dir, &out)

	// Tear the watch down right as a debounce timer fires; a late timer
	// must not send on the closed event channel.
	for i := 0; i < 50; i++ {
		events, cleanup, err := r.Watch(context.Background())
		if err != nil {
			t.Fatal(err)
		}

		if err := renameio.WriteFile(dir+"/t1.conf", []byte("port-offset=1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(DefaultWatchDebounce)

		if err := cleanup(); err != nil {
			t.Fatalf("cleanup() error = %v", err)
		}
		for range events {
			// drain whatever was emitted before shutdown
		}
	}
}

// writeConfFile creates dir/t1.conf before a watch begins
func writeConfFile(t *testing.T, dir string) string {
	t.Helper()
	b := NewInstanceBuilder("t1", dir)
	if err := b.Build(); err != nil {
		t.Fatal(err)
	}
	return b.Path()
}
