package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pvebulk/pvebulk/pkg/args"
	"github.com/pvebulk/pvebulk/pkg/dispatch"
	"github.com/pvebulk/pvebulk/pkg/engine"
	"github.com/pvebulk/pvebulk/pkg/ops"
)

// guestOperation builds a node-aware operation over the first..last range.
func guestOperation(s *session, v args.Values, name string, cb engine.Callback) (engine.Operation, error) {
	source, err := idRange(v)
	if err != nil {
		return engine.Operation{}, err
	}
	return engine.Operation{
		Name:     name,
		Source:   source,
		Locator:  s.resolver,
		Callback: cb,
	}, nil
}

func guests(s *session) *ops.Guests {
	return ops.NewGuests(s.exec, s.tel.Logger.NewComponentLogger("ops"))
}

func newPowerCommand(a *app) *cobra.Command {
	return newBulkCommand(a, bulkCommand{
		use:   "power <action> <first> [last]",
		short: "Change the power state of guests",
		long: `Run a power action on every VM or container in first..last, on the
node that hosts it. Actions: ` + strings.Join(ops.PowerActions, ", ") + `.`,
		example: `  # Start guests 100 to 120
  pvebulk power start 100 120

  # Shut down one container from outside the cluster
  pvebulk power shutdown 205 --seed 10.0.0.1`,
		schema: "action:choice(" + strings.Join(ops.PowerActions, "|") + ") first:vmid last:vmid?",
		build: func(s *session, v args.Values) (engine.Operation, error) {
			action := v.String("action")
			cb, err := guests(s).Power(action)
			if err != nil {
				return engine.Operation{}, err
			}
			return guestOperation(s, v, "power "+action, cb)
		},
	})
}

func newDestroyCommand(a *app) *cobra.Command {
	return newBulkCommand(a, bulkCommand{
		use:   "destroy <first> [last]",
		short: "Destroy guests",
		long: `Destroy every VM or container in first..last. With --purge, also remove
the guests from backup jobs, replication and HA configuration.

Asks for confirmation on a terminal; otherwise --yes is required.`,
		example: `  pvebulk destroy 300 310 --purge --yes`,
		schema:      "first:vmid last:vmid? --purge:flag",
		destructive: true,
		build: func(s *session, v args.Values) (engine.Operation, error) {
			return guestOperation(s, v, "destroy", guests(s).Destroy(v.Bool("purge")))
		},
	})
}

func newSetMemoryCommand(a *app) *cobra.Command {
	return newBulkCommand(a, bulkCommand{
		use:   "set-memory <first> <last> <size>",
		short: "Set guest memory",
		long: `Set the memory of every guest in first..last. A bare number is MiB;
K, M, G and T suffixes are binary units (4G is 4096 MiB).`,
		example: `  pvebulk set-memory 100 110 4G`,
		schema:  "first:vmid last:vmid size:memory",
		build: func(s *session, v args.Values) (engine.Operation, error) {
			return guestOperation(s, v, "set-memory", guests(s).SetMemory(v.MiB("size")))
		},
	})
}

func newSetCoresCommand(a *app) *cobra.Command {
	return newBulkCommand(a, bulkCommand{
		use:     "set-cores <first> <last> <cores>",
		short:   "Set guest CPU cores",
		long:    `Set the CPU core count of every guest in first..last.`,
		example: `  pvebulk set-cores 100 110 4`,
		schema:  "first:vmid last:vmid cores:int",
		build: func(s *session, v args.Values) (engine.Operation, error) {
			cores := v.Int("cores")
			if cores < 1 {
				return engine.Operation{}, &engine.UsageError{Param: "cores", Value: strconv.Itoa(cores), Reason: "must be at least 1"}
			}
			return guestOperation(s, v, "set-cores", guests(s).SetCores(cores))
		},
	})
}

func newMigrateCommand(a *app) *cobra.Command {
	return newBulkCommand(a, bulkCommand{
		use:   "migrate <first> <last> <target-node>",
		short: "Migrate guests to another node",
		long: `Migrate every guest in first..last to the target node. With --online
VMs keep running and containers are restarted on the target. Requires a
quorate cluster.`,
		example: `  pvebulk migrate 100 120 pve3 --online`,
		schema:  "first:vmid last:vmid target:node --online:flag",
		quorum:  true,
		build: func(s *session, v args.Values) (engine.Operation, error) {
			target := v.String("target")
			if _, ok := s.resolver.NodeAddress(target); !ok {
				return engine.Operation{}, &engine.UsageError{Param: "target", Value: target, Reason: "not a cluster member"}
			}
			return guestOperation(s, v, "migrate", guests(s).Migrate(target, v.Bool("online")))
		},
	})
}

func newBackupCommand(a *app) *cobra.Command {
	return newBulkCommand(a, bulkCommand{
		use:   "backup <first> <last> <storage>",
		short: "Back up guests with vzdump",
		long:  `Run vzdump for every guest in first..last into the given storage.`,
		example: `  # Snapshot backups to a backup server storage
  pvebulk backup 100 150 pbs-main

  # Stop-mode backups
  pvebulk backup 100 150 local --mode stop`,
		schema: "first:vmid last:vmid storage:storage --mode:choice(" + strings.Join(ops.BackupModes, "|") + ")=snapshot",
		build: func(s *session, v args.Values) (engine.Operation, error) {
			return guestOperation(s, v, "backup", guests(s).Backup(v.String("storage"), v.String("mode")))
		},
	})
}

func newExecCommand(a *app) *cobra.Command {
	return newBulkCommand(a, bulkCommand{
		use:   "exec <first> <last> <command...>",
		short: "Run a command for each guest on its node",
		long: `Run an arbitrary command on the node hosting each guest in first..last.
Every {id} in the command is replaced by the guest ID. Flags for pvebulk
must come before the command; everything after it is passed verbatim.`,
		example: `  pvebulk exec 100 110 qm guest exec {id} -- systemctl restart nginx`,
		schema:  "first:vmid last:vmid command:list",
		build: func(s *session, v args.Values) (engine.Operation, error) {
			argv := v.List("command")
			cmd := dispatch.NewCommand(argv[0], argv[1:]...)
			return guestOperation(s, v, "exec", guests(s).Command(cmd))
		},
	})
}
