package instmgr

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// Ports holds the three resolved network ports of one instance
type Ports struct {
	// Driver is the client driver port
	Driver int
	// Cluster is the intracluster port
	Cluster int
	// HTTP is the web administration port
	HTTP int
}

// UsesDefaults reports whether any one of the three ports equals its builtin
// default. A single matching port counts, regardless of whether the match
// came from an explicit override or from a zero offset.
func (p Ports) UsesDefaults() bool {
	return p.Driver == DefaultDriverPort || p.Cluster == DefaultClusterPort || p.HTTP == DefaultHTTPPort
}

// RuntimeParams holds the fully resolved runtime parameters of one instance.
// It is immutable once computed for an invocation; nothing downstream
// re-reads the configuration.
type RuntimeParams struct {
	// Name is the instance name derived from the config file base name
	Name string

	// ConfPath is the path to the instance's configuration file
	ConfPath string

	// PIDFilePath is where the supervised process records its pid
	PIDFilePath string

	// DataDir is the instance's data directory
	DataDir string

	// LogFilePath is where the supervised process writes its log. It is
	// announced at start time but not part of the launch argument vector.
	LogFilePath string

	// BindAddress is the optional bind address from the config, empty if unset
	BindAddress string

	// RunUser is the account the supervised process runs as
	RunUser string

	// RunGroup is the group the supervised process runs as
	RunGroup string

	// Ports are the resolved network ports
	Ports Ports

	// Args is the full argument vector handed to the supervised process,
	// including the config file path and the derived overrides
	Args []string
}

// Resolver computes effective runtime parameters for instances, applying
// layered defaults and creating missing directories as a side effect.
type Resolver struct {
	// RuntimeRoot is the root for computed pid file paths
	RuntimeRoot string

	// StorageRoot is the root for computed data directories
	StorageRoot string

	// RunUser is the default service account
	RunUser string

	// RunGroup is the default service group
	RunGroup string

	// Logger receives structured diagnostics; ownership failures are logged
	// here rather than surfaced as errors
	Logger *slog.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithRuntimeRoot sets the root directory for computed pid file paths
func WithRuntimeRoot(dir string) ResolverOption {
	return func(r *Resolver) {
		r.RuntimeRoot = dir
	}
}

// WithStorageRoot sets the root directory for computed data directories
func WithStorageRoot(dir string) ResolverOption {
	return func(r *Resolver) {
		r.StorageRoot = dir
	}
}

// WithServiceAccount sets the default run user and group
func WithServiceAccount(runUser, runGroup string) ResolverOption {
	return func(r *Resolver) {
		r.RunUser = runUser
		r.RunGroup = runGroup
	}
}

// WithResolverLogger sets the logger for resolution diagnostics
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.Logger = logger
	}
}

// NewResolver creates a Resolver with the conventional roots and service
// account, then applies any provided options
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		RuntimeRoot: DefaultRuntimeRoot,
		StorageRoot: DefaultStorageRoot,
		RunUser:     DefaultRunUser,
		RunGroup:    DefaultRunGroup,
		Logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// InstanceName derives the instance name from a configuration file path
func InstanceName(confPath string) string {
	return strings.TrimSuffix(filepath.Base(confPath), DefaultConfSuffix)
}

// Resolve turns one instance's Config into fully resolved RuntimeParams.
// Every missing key has a computed fallback, so resolution only fails on a
// malformed numeric value. Missing directories under the conventional roots
// are created with best-effort ownership; ownership failures are logged and
// do not abort the instance.
func (r *Resolver) Resolve(name string, cfg *Config, confPath string) (*RuntimeParams, error) {
	rp := &RuntimeParams{
		Name:     name,
		ConfPath: confPath,
	}

	rp.RunUser = r.RunUser
	if v, ok := cfg.Lookup(KeyRunUser); ok {
		rp.RunUser = v
	}
	rp.RunGroup = r.RunGroup
	if v, ok := cfg.Lookup(KeyRunGroup); ok {
		rp.RunGroup = v
	}

	if v, ok := cfg.Lookup(KeyPIDFile); ok {
		rp.PIDFilePath = v
	} else {
		rp.PIDFilePath = filepath.Join(r.RuntimeRoot, name, DefaultPIDFileName)
	}
	r.ensureDir(filepath.Dir(rp.PIDFilePath), r.RuntimeRoot, rp)

	if v, ok := cfg.Lookup(KeyDirectory); ok {
		rp.DataDir = v
	} else {
		rp.DataDir = filepath.Join(r.StorageRoot, name, DefaultDataDirName)
		// The instance's storage root is created, not the data directory
		// itself; the supervised process initializes that on first launch.
		r.ensureDir(filepath.Join(r.StorageRoot, name), r.StorageRoot, rp)
	}

	offset, err := r.intValue(cfg, KeyPortOffset, 0)
	if err != nil {
		return nil, err
	}
	if rp.Ports.Driver, err = r.intValue(cfg, KeyDriverPort, DefaultDriverPort+offset); err != nil {
		return nil, err
	}
	if rp.Ports.Cluster, err = r.intValue(cfg, KeyClusterPort, DefaultClusterPort+offset); err != nil {
		return nil, err
	}
	if rp.Ports.HTTP, err = r.intValue(cfg, KeyHTTPPort, DefaultHTTPPort+offset); err != nil {
		return nil, err
	}

	if v, ok := cfg.Lookup(KeyLogFile); ok {
		rp.LogFilePath = v
	} else {
		rp.LogFilePath = filepath.Join(rp.DataDir, DefaultLogFileName)
	}

	if v, ok := cfg.Lookup(KeyBind); ok {
		rp.BindAddress = v
	}

	rp.Args = []string{
		"--config-file", rp.ConfPath,
		"--runuser", rp.RunUser,
		"--rungroup", rp.RunGroup,
		"--pid-file", rp.PIDFilePath,
		"--directory", rp.DataDir,
	}
	if rp.BindAddress != "" {
		rp.Args = append(rp.Args, "--bind", rp.BindAddress)
	}

	return rp, nil
}

// intValue resolves an integer key, falling back to def when absent
func (r *Resolver) intValue(cfg *Config, key string, def int) (int, error) {
	v, ok := cfg.Lookup(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid value %q for %s: %w", v, key, err)
	}
	return n, nil
}

// ensureDir creates dir if it is missing and lies under root, then sets
// ownership to the instance's run user and group. Creation and ownership
// failures downgrade to a logged warning.
func (r *Resolver) ensureDir(dir, root string, rp *RuntimeParams) {
	if dir == root || !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return
	}
	if _, err := os.Stat(dir); err == nil {
		return
	}

	if err := os.MkdirAll(dir, DirMode); err != nil {
		r.Logger.Warn("creating instance directory failed", "instance", rp.Name, "dir", dir, "error", err)
		return
	}
	r.chownBestEffort(dir, rp)
}

// chownBestEffort assigns ownership of path to the instance's run user and
// group. Lookup or chown failures are logged at debug level; the supervised
// process may still be able to use the path.
func (r *Resolver) chownBestEffort(path string, rp *RuntimeParams) {
	u, err := user.Lookup(rp.RunUser)
	if err != nil {
		r.Logger.Debug("run user lookup failed, leaving ownership unchanged", "instance", rp.Name, "runuser", rp.RunUser, "error", err)
		return
	}
	g, err := user.LookupGroup(rp.RunGroup)
	if err != nil {
		r.Logger.Debug("run group lookup failed, leaving ownership unchanged", "instance", rp.Name, "rungroup", rp.RunGroup, "error", err)
		return
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return
	}

	if err := os.Chown(path, uid, gid); err != nil {
		r.Logger.Debug("chown failed, leaving ownership unchanged", "instance", rp.Name, "path", path, "error", err)
	}
}
