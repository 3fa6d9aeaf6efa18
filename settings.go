package instmgr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings configures the supervisor itself, as opposed to the per-instance
// configuration files it supervises. Settings are loaded from a YAML file;
// a missing file yields the defaults.
type Settings struct {
	// ServerBinary is the path to the supervised server binary
	ServerBinary string `yaml:"server_binary"`

	// DaemonFlag makes the server detach on launch
	DaemonFlag string `yaml:"daemon_flag"`

	// ConfDir is the directory scanned for instance configuration files
	ConfDir string `yaml:"conf_dir"`

	// RuntimeRoot is the root for computed pid file paths
	RuntimeRoot string `yaml:"runtime_root"`

	// StorageRoot is the root for computed data directories
	StorageRoot string `yaml:"storage_root"`

	// RunUser is the default service account
	RunUser string `yaml:"runuser"`

	// RunGroup is the default service group
	RunGroup string `yaml:"rungroup"`

	// PollIntervalSeconds is the delay between liveness probes during a
	// stop wait
	PollIntervalSeconds int `yaml:"poll_interval"`

	// StopTimeoutSeconds bounds the stop wait before escalating to a
	// forceful kill; zero keeps the wait unbounded
	StopTimeoutSeconds int `yaml:"stop_timeout"`
}

// DefaultSettingsPath is the conventional location of the supervisor settings file
const DefaultSettingsPath = "/etc/instmgr/instmgr.yml"

// DefaultSettings returns the settings used when no file is present
func DefaultSettings() Settings {
	return Settings{
		ServerBinary:        DefaultServerBinary,
		DaemonFlag:          DefaultDaemonFlag,
		ConfDir:             DefaultConfDir,
		RuntimeRoot:         DefaultRuntimeRoot,
		StorageRoot:         DefaultStorageRoot,
		RunUser:             DefaultRunUser,
		RunGroup:            DefaultRunGroup,
		PollIntervalSeconds: int(DefaultPollInterval / time.Second),
	}
}

// LoadSettings reads the settings file at path. A missing file is not an
// error; the defaults are returned. Fields absent from the file keep their
// default values.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("reading settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing settings file %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("settings file %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the settings for values the supervisor cannot operate with
func (s Settings) Validate() error {
	if s.ServerBinary == "" {
		return fmt.Errorf("server_binary must not be empty")
	}
	if s.ConfDir == "" {
		return fmt.Errorf("conf_dir must not be empty")
	}
	if s.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if s.StopTimeoutSeconds < 0 {
		return fmt.Errorf("stop_timeout must not be negative")
	}
	return nil
}

// PollInterval returns the poll interval as a duration
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// StopTimeout returns the stop timeout as a duration; zero means unbounded
func (s Settings) StopTimeout() time.Duration {
	return time.Duration(s.StopTimeoutSeconds) * time.Second
}
