// Package instmgr supervises multiple independently configured instances of
// a database server on one host. Each instance is described by one
// configuration file in an instances.d-style directory; the supervisor
// derives the instance's runtime parameters (pid file, data directory, log
// file, network ports), arbitrates default-port claims across instances, and
// drives each instance through a start/stop/restart/status lifecycle by
// tracking the OS process named in its pid file.
//
// The core entry point is the Runner, which discovers configuration files
// and processes each one independently:
//
//	runner := instmgr.NewRunner("/etc/instmgr/instances.d")
//	if err := runner.Run(ctx, instmgr.ActionStatus); err != nil {
//	    log.Fatal(err)
//	}
//
// Single instances can be driven directly through a Supervisor once their
// configuration has been parsed and resolved:
//
//	cfg, warnings, err := instmgr.ParseConfigFile("/etc/instmgr/instances.d/t1.conf")
//	rp, err := instmgr.NewResolver().Resolve("t1", cfg, confPath)
//	sup := instmgr.NewSupervisor()
//	status, pid, err := sup.Status(rp)
//
// # Failure isolation
//
// A failure in one instance's pipeline never aborts the processing of the
// others: parse warnings are logged and skipped line by line, missing keys
// fall back to computed defaults, and a default-port conflict skips only the
// conflicting instance. The worst outcome for a single instance is
// "skipped", never a crash of the whole run.
//
// # Port arbitration
//
// Instances that omit their port keys resolve to the builtin defaults plus
// an optional per-instance offset. Within one run, the first instance whose
// resolved ports touch the unmodified defaults claims them; every later
// instance landing on them is rejected. The claim state is an explicit
// Arbiter value scoped to the run, never persisted.
//
// # Process tracking
//
// The supervised server writes its own pid file after detaching; the
// supervisor only ever reads it. Liveness is re-evaluated on demand with a
// signal-0 probe and never cached across actions. The stop sequence sends a
// graceful interrupt and polls until the process exits; by default the wait
// is unbounded, matching the historical behavior, with an opt-in timeout
// that escalates to SIGKILL.
package instmgr
