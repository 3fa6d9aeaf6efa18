// Command instmgr supervises multiple database server instances on one
// host. It expects a single action argument, applies it to every instance
// configured in the instances directory, and reports one line per instance.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	instmgr "github.com/axondata/go-instmgr"
)

var (
	settingsPath string
	confDir      string
	verbose      bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "instmgr <action>",
		Short: "supervise multiple database server instances on this host",
		Long: `instmgr derives runtime parameters for every instance configured under the
instances directory, arbitrates default-port claims between them, and applies
the requested lifecycle action to each instance independently. A failure in
one instance never aborts the others.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return fmt.Errorf("missing action: one of start, stop, restart, force-restart, status")
		},
	}

	root.PersistentFlags().StringVar(&settingsPath, "settings", instmgr.DefaultSettingsPath, "path to the supervisor settings file")
	root.PersistentFlags().StringVar(&confDir, "config-dir", "", "override the instance configuration directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	for _, action := range instmgr.Actions() {
		root.AddCommand(newActionCmd(action))
	}

	return root
}

func newActionCmd(action instmgr.Action) *cobra.Command {
	return &cobra.Command{
		Use:   action.String(),
		Short: fmt.Sprintf("apply the %s action to every configured instance", action),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAction(cmd, action)
		},
	}
}

func runAction(cmd *cobra.Command, action instmgr.Action) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	settings, err := instmgr.LoadSettings(settingsPath)
	if err != nil {
		return err
	}
	if confDir != "" {
		settings.ConfDir = confDir
	}

	tracker := instmgr.NewTracker(
		instmgr.WithPollInterval(settings.PollInterval()),
		instmgr.WithStopTimeout(settings.StopTimeout()),
		instmgr.WithStopProgress(func(name string, pid int) {
			fmt.Printf("%s: waiting for pid %d to exit\n", name, pid)
		}),
	)
	resolver := instmgr.NewResolver(
		instmgr.WithRuntimeRoot(settings.RuntimeRoot),
		instmgr.WithStorageRoot(settings.StorageRoot),
		instmgr.WithServiceAccount(settings.RunUser, settings.RunGroup),
		instmgr.WithResolverLogger(logger),
	)
	supervisor := instmgr.NewSupervisor(
		instmgr.WithBinary(settings.ServerBinary),
		instmgr.WithDaemonFlag(settings.DaemonFlag),
		instmgr.WithTracker(tracker),
		instmgr.WithLogger(logger),
		instmgr.WithOutput(os.Stdout),
	)
	runner := instmgr.NewRunner(settings.ConfDir,
		instmgr.WithResolver(resolver),
		instmgr.WithSupervisor(supervisor),
		instmgr.WithRunnerLogger(logger),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runner.Run(ctx, action)
}
