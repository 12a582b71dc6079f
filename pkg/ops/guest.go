// Package ops holds the per-item actions of the bulk subcommands: guest
// lifecycle through qm and pct, backups through vzdump, arbitrary commands,
// and Ceph OSD restarts. Every action runs on the node that hosts the item.
package ops

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pvebulk/pvebulk/pkg/dispatch"
	"github.com/pvebulk/pvebulk/pkg/engine"
)

// Executor runs a platform command for one entity on a target.
type Executor interface {
	Dispatch(ctx context.Context, target dispatch.Target, cmd dispatch.Command, id int) (dispatch.Result, error)
}

// PowerActions are the power state changes both qm and pct understand.
var PowerActions = []string{"start", "stop", "shutdown", "reboot", "suspend", "resume"}

// BackupModes are the vzdump modes.
var BackupModes = []string{"snapshot", "suspend", "stop"}

// Tool returns the management tool for a guest kind.
func Tool(kind engine.EntityKind) (string, error) {
	switch kind {
	case engine.KindVM:
		return "qm", nil
	case engine.KindContainer:
		return "pct", nil
	default:
		return "", fmt.Errorf("no management tool for %q entities", kind)
	}
}

// Guests builds callbacks acting on virtual machines and containers.
type Guests struct {
	exec   Executor
	logger zerolog.Logger
}

// NewGuests returns guest actions dispatched through exec.
func NewGuests(exec Executor, logger zerolog.Logger) *Guests {
	return &Guests{exec: exec, logger: logger}
}

// Power changes the power state of each guest.
func (g *Guests) Power(action string) (engine.Callback, error) {
	if !slices.Contains(PowerActions, action) {
		return nil, &engine.UsageError{Param: "ACTION", Value: action, Reason: "unknown power action"}
	}
	return g.tool(func(engine.Item) []string {
		return []string{action, dispatch.IDPlaceholder}
	}), nil
}

// Destroy removes each guest, and with purge also its references in
// backup jobs, replication and HA.
func (g *Guests) Destroy(purge bool) engine.Callback {
	return g.tool(func(engine.Item) []string {
		args := []string{"destroy", dispatch.IDPlaceholder}
		if purge {
			args = append(args, "--purge")
		}
		return args
	})
}

// SetMemory sets the memory of each guest in MiB.
func (g *Guests) SetMemory(mib uint64) engine.Callback {
	return g.tool(func(engine.Item) []string {
		return []string{"set", dispatch.IDPlaceholder, "--memory", strconv.FormatUint(mib, 10)}
	})
}

// SetCores sets the CPU core count of each guest.
func (g *Guests) SetCores(cores int) engine.Callback {
	return g.tool(func(engine.Item) []string {
		return []string{"set", dispatch.IDPlaceholder, "--cores", strconv.Itoa(cores)}
	})
}

// Migrate moves each guest to the target node. Online migration keeps VMs
// running; containers cannot live-migrate and are restarted instead. Guests
// already on the target succeed without a command.
func (g *Guests) Migrate(target string, online bool) engine.Callback {
	move := g.tool(func(item engine.Item) []string {
		args := []string{"migrate", dispatch.IDPlaceholder, target}
		if online {
			if item.Placement.Kind == engine.KindContainer {
				args = append(args, "--restart")
			} else {
				args = append(args, "--online")
			}
		}
		return args
	})

	return func(ctx context.Context, item engine.Item) engine.Outcome {
		if item.Placement.Node == target {
			return engine.Success("already on " + target)
		}
		return move(ctx, item)
	}
}

// Backup runs vzdump for each guest into storage.
func (g *Guests) Backup(storage, mode string) engine.Callback {
	return g.Command(dispatch.NewCommand("vzdump", dispatch.IDPlaceholder, "--storage", storage, "--mode", mode))
}

// Command runs cmd on each guest's node. {id} in any argument is replaced
// by the guest ID.
func (g *Guests) Command(cmd dispatch.Command) engine.Callback {
	return func(ctx context.Context, item engine.Item) engine.Outcome {
		return g.run(ctx, item, cmd)
	}
}

// tool builds a callback running qm or pct, picked by the guest's kind,
// with the arguments args returns.
func (g *Guests) tool(args func(engine.Item) []string) engine.Callback {
	return func(ctx context.Context, item engine.Item) engine.Outcome {
		name, err := Tool(item.Placement.Kind)
		if err != nil {
			return engine.Failure(err)
		}
		return g.run(ctx, item, dispatch.NewCommand(name, args(item)...))
	}
}

func (g *Guests) run(ctx context.Context, item engine.Item, cmd dispatch.Command) engine.Outcome {
	res, err := g.exec.Dispatch(ctx, dispatch.TargetFor(item.Placement), cmd, item.ID)
	if err != nil {
		return engine.Failure(err)
	}
	if res.DryRun {
		return engine.Success("would run: " + cmd.Expand(item.ID).String())
	}

	g.logger.Debug().
		Int("vmid", item.ID).
		Str("node", item.Placement.Node).
		Str("command", cmd.Name).
		Msg("guest command finished")

	return engine.Success(res.Stdout)
}
