package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pvebulk/pvebulk/pkg/dispatch"
	"github.com/pvebulk/pvebulk/pkg/engine"
)

const osdUnit = "ceph-osd@" + dispatch.IDPlaceholder

// NodeDirectory maps cluster node names to addresses.
type NodeDirectory interface {
	NodeAddress(name string) (string, bool)
	IsLocalAddress(address string) bool
}

// osdFind is the part of `ceph osd find` output we use.
type osdFind struct {
	OSD           int               `json:"osd"`
	Host          string            `json:"host"`
	CrushLocation map[string]string `json:"crush_location"`
}

// OSDs locates and restarts Ceph OSD daemons.
type OSDs struct {
	query  Executor
	exec   Executor
	nodes  NodeDirectory
	via    dispatch.Target
	poll   dispatch.Poll
	logger zerolog.Logger
}

// OSDOption configures OSDs.
type OSDOption func(*OSDs)

// WithQueryTarget runs ceph queries on a node other than this host.
func WithQueryTarget(t dispatch.Target) OSDOption {
	return func(o *OSDs) {
		o.via = t
	}
}

// WithPoll bounds the wait for a restarted OSD to become active.
func WithPoll(p dispatch.Poll) OSDOption {
	return func(o *OSDs) {
		o.poll = p
	}
}

// WithOSDLogger sets the logger.
func WithOSDLogger(logger zerolog.Logger) OSDOption {
	return func(o *OSDs) {
		o.logger = logger
	}
}

// NewOSDs returns OSD actions. query runs read-only commands and must not
// be in dry-run mode; exec runs the restarts.
func NewOSDs(query, exec Executor, nodes NodeDirectory, opts ...OSDOption) *OSDs {
	o := &OSDs{
		query:  query,
		exec:   exec,
		nodes:  nodes,
		via:    dispatch.Local,
		poll:   dispatch.DefaultPoll,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Locate implements engine.Locator for OSD IDs using `ceph osd find`.
func (o *OSDs) Locate(ctx context.Context, id int) (engine.Placement, error) {
	cmd := dispatch.NewCommand("ceph", "osd", "find", dispatch.IDPlaceholder, "--format", "json")
	res, err := o.query.Dispatch(ctx, o.via, cmd, id)
	if err != nil {
		var failure *engine.ExecutionFailure
		if errors.As(err, &failure) && failure.ExitCode > 0 && osdMissing(failure.Stderr) {
			return engine.NotFound, nil
		}
		return engine.NotFound, err
	}

	var found osdFind
	if err := json.Unmarshal([]byte(res.Stdout), &found); err != nil {
		return engine.NotFound, fmt.Errorf("failed to parse ceph osd find output: %w", err)
	}

	host := found.CrushLocation["host"]
	if host == "" {
		host = found.Host
	}
	if host == "" {
		return engine.NotFound, nil
	}

	p := engine.Placement{Node: host, Kind: engine.KindDaemon}
	if addr, ok := o.nodes.NodeAddress(host); ok {
		p.Address = addr
		p.Local = o.nodes.IsLocalAddress(addr)
	}
	return p, nil
}

func osdMissing(stderr string) bool {
	return strings.Contains(stderr, "ENOENT") || strings.Contains(stderr, "does not exist")
}

// Restart restarts each OSD's systemd unit on its host and waits until the
// unit reports active.
func (o *OSDs) Restart() engine.Callback {
	return func(ctx context.Context, item engine.Item) engine.Outcome {
		target := dispatch.TargetFor(item.Placement)

		res, err := o.exec.Dispatch(ctx, target, dispatch.NewCommand("systemctl", "restart", osdUnit), item.ID)
		if err != nil {
			return engine.Failure(err)
		}
		if res.DryRun {
			return engine.Success(fmt.Sprintf("would restart osd.%d on %s", item.ID, item.Placement.Node))
		}

		condition := fmt.Sprintf("osd.%d active", item.ID)
		if err := dispatch.WaitFor(ctx, o.poll, condition, o.activeCheck(target, item.ID)); err != nil {
			return engine.Failure(err)
		}

		o.logger.Info().Int("osd", item.ID).Str("node", item.Placement.Node).Msg("osd active")
		return engine.Success("active")
	}
}

// activeCheck polls `systemctl is-active`, which exits non-zero for every
// state but active.
func (o *OSDs) activeCheck(target dispatch.Target, id int) dispatch.Check {
	cmd := dispatch.NewCommand("systemctl", "is-active", osdUnit)
	return func(ctx context.Context) (bool, string, error) {
		res, err := o.query.Dispatch(ctx, target, cmd, id)
		state := res.Stdout
		if err != nil {
			var failure *engine.ExecutionFailure
			if errors.As(err, &failure) && failure.ExitCode > 0 {
				return false, state, nil
			}
			return false, state, err
		}
		return state == "active", state, nil
	}
}
