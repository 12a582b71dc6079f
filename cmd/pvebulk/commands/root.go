package commands

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pvebulk/pvebulk/pkg/cluster"
	"github.com/pvebulk/pvebulk/pkg/config"
	"github.com/pvebulk/pvebulk/pkg/transports/ssh"
)

// app carries what every subcommand shares. Tests replace the functions
// that touch the host.
type app struct {
	version string
	stdout  io.Writer
	stderr  io.Writer

	// requireRoot checks privileges before anything is executed.
	requireRoot func() error

	// openStore returns the cluster filesystem for cfg.
	openStore func(ctx context.Context, cfg *config.Config, pool *ssh.Pool) (fs.FS, error)

	// localAddrs, when set, replaces the host's interface addresses.
	localAddrs []string

	isTerminal func() bool
	confirm    func(ctx context.Context, title string) (bool, error)
}

func newApp(version string) *app {
	return &app{
		version:     version,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		requireRoot: cluster.RequireRoot,
		openStore:   openStore,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
		confirm: huhConfirm,
	}
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(newApp(version), version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(a *app, version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pvebulk",
		Short: "pvebulk - cluster-wide bulk operations",
		Long: `pvebulk applies one maintenance action to a range or list of virtual
machines, containers or storage daemons across a cluster.

Every ID is located on its hosting node and the platform command runs
there, locally or over SSH. Items are processed one at a time, in order;
a failing item does not stop the batch. The run ends with a summary and
exits non-zero when any item failed.

Flags shared by every bulk subcommand:
  --config <path>         configuration file
  --log-level <level>     trace, debug, info, warn or error
  --seed <ip>             read the cluster store from this node over SFTP
  --on-missing skip|fail  how IDs absent from the cluster count (default skip)
  --dry-run               print commands instead of running them
  --yes                   do not ask before destructive actions`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.AddCommand(newNodesCommand(a))
	rootCmd.AddCommand(newLocateCommand(a))
	rootCmd.AddCommand(newPowerCommand(a))
	rootCmd.AddCommand(newDestroyCommand(a))
	rootCmd.AddCommand(newSetMemoryCommand(a))
	rootCmd.AddCommand(newSetCoresCommand(a))
	rootCmd.AddCommand(newMigrateCommand(a))
	rootCmd.AddCommand(newBackupCommand(a))
	rootCmd.AddCommand(newExecCommand(a))
	rootCmd.AddCommand(newCephCommand(a))

	return rootCmd
}
