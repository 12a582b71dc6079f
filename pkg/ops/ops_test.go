package ops

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvebulk/pvebulk/pkg/dispatch"
	"github.com/pvebulk/pvebulk/pkg/engine"
)

type call struct {
	target string
	line   string
}

// fakeExecutor records expanded command lines and answers from a table
// keyed by them. Unknown lines succeed with empty output.
type fakeExecutor struct {
	calls   []call
	answers map[string][]dispatch.Result
	dryRun  bool
}

func (f *fakeExecutor) Dispatch(_ context.Context, target dispatch.Target, cmd dispatch.Command, id int) (dispatch.Result, error) {
	line := cmd.Expand(id).String()
	f.calls = append(f.calls, call{target: target.String(), line: line})
	if f.dryRun {
		return dispatch.Result{DryRun: true}, nil
	}

	res := dispatch.Result{}
	if queue := f.answers[line]; len(queue) > 0 {
		res = queue[0]
		if len(queue) > 1 {
			f.answers[line] = queue[1:]
		}
	}
	if res.ExitCode != 0 {
		return res, &engine.ExecutionFailure{
			Command:  line,
			Target:   target.String(),
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      fmt.Errorf("exit status %d", res.ExitCode),
		}
	}
	return res, nil
}

func (f *fakeExecutor) lines() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.line
	}
	return out
}

var (
	vmOnPve2 = engine.Item{ID: 100, Placement: engine.Placement{Node: "pve2", Address: "10.0.0.2", Kind: engine.KindVM}}
	ctOnPve1 = engine.Item{ID: 101, Placement: engine.Placement{Node: "pve1", Address: "10.0.0.1", Kind: engine.KindContainer, Local: true}}
)

func TestGuestCommands(t *testing.T) {
	tests := []struct {
		name     string
		callback func(g *Guests) engine.Callback
		vm       string
		ct       string
	}{
		{
			name: "power",
			callback: func(g *Guests) engine.Callback {
				cb, err := g.Power("shutdown")
				require.NoError(t, err)
				return cb
			},
			vm: "qm shutdown 100",
			ct: "pct shutdown 101",
		},
		{
			name:     "destroy",
			callback: func(g *Guests) engine.Callback { return g.Destroy(true) },
			vm:       "qm destroy 100 --purge",
			ct:       "pct destroy 101 --purge",
		},
		{
			name:     "memory",
			callback: func(g *Guests) engine.Callback { return g.SetMemory(4096) },
			vm:       "qm set 100 --memory 4096",
			ct:       "pct set 101 --memory 4096",
		},
		{
			name:     "cores",
			callback: func(g *Guests) engine.Callback { return g.SetCores(4) },
			vm:       "qm set 100 --cores 4",
			ct:       "pct set 101 --cores 4",
		},
		{
			name:     "migrate online",
			callback: func(g *Guests) engine.Callback { return g.Migrate("pve3", true) },
			vm:       "qm migrate 100 pve3 --online",
			ct:       "pct migrate 101 pve3 --restart",
		},
		{
			name:     "backup",
			callback: func(g *Guests) engine.Callback { return g.Backup("pbs-main", "snapshot") },
			vm:       "vzdump 100 --storage pbs-main --mode snapshot",
			ct:       "vzdump 101 --storage pbs-main --mode snapshot",
		},
		{
			name: "exec",
			callback: func(g *Guests) engine.Callback {
				return g.Command(dispatch.NewCommand("qm", "guest", "exec", "{id}", "--", "uptime"))
			},
			vm: "qm guest exec 100 -- uptime",
			ct: "qm guest exec 101 -- uptime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			cb := tt.callback(NewGuests(exec, zerolog.Nop()))

			assert.True(t, cb(context.Background(), vmOnPve2).OK)
			assert.True(t, cb(context.Background(), ctOnPve1).OK)

			require.Len(t, exec.calls, 2)
			assert.Equal(t, call{target: "pve2@10.0.0.2", line: tt.vm}, exec.calls[0])
			assert.Equal(t, call{target: "local", line: tt.ct}, exec.calls[1])
		})
	}
}

func TestGuestFailures(t *testing.T) {
	exec := &fakeExecutor{answers: map[string][]dispatch.Result{
		"qm start 100": {{ExitCode: 255, Stderr: "VM is locked (backup)"}},
	}}
	g := NewGuests(exec, zerolog.Nop())

	cb, err := g.Power("start")
	require.NoError(t, err)

	out := cb(context.Background(), vmOnPve2)
	assert.False(t, out.OK)
	assert.Contains(t, out.Message, "VM is locked")

	out = cb(context.Background(), engine.Item{ID: 5, Placement: engine.Placement{Node: "pve1", Kind: engine.KindDaemon}})
	assert.False(t, out.OK, "daemons have no guest tool")
	assert.Len(t, exec.calls, 1)

	_, err = g.Power("hibernate")
	assert.True(t, engine.IsUsage(err))
}

func TestGuestMigrateAlreadyThere(t *testing.T) {
	exec := &fakeExecutor{}
	out := NewGuests(exec, zerolog.Nop()).Migrate("pve2", false)(context.Background(), vmOnPve2)

	assert.True(t, out.OK)
	assert.Empty(t, exec.calls)
}

func TestGuestDryRun(t *testing.T) {
	exec := &fakeExecutor{dryRun: true}
	out := NewGuests(exec, zerolog.Nop()).Destroy(false)(context.Background(), vmOnPve2)

	assert.True(t, out.OK)
	assert.Equal(t, "would run: qm destroy 100", out.Message)
}

type fakeNodes map[string]string

func (f fakeNodes) NodeAddress(name string) (string, bool) {
	addr, ok := f[name]
	return addr, ok
}

func (f fakeNodes) IsLocalAddress(address string) bool {
	return address == "10.0.0.1"
}

var testNodes = fakeNodes{"pve1": "10.0.0.1", "pve2": "10.0.0.2"}

func TestOSDLocate(t *testing.T) {
	query := &fakeExecutor{answers: map[string][]dispatch.Result{
		"ceph osd find 3 --format json": {{Stdout: `{"osd":3,"host":"pve2","crush_location":{"host":"pve2","root":"default"}}`}},
		"ceph osd find 4 --format json": {{Stdout: `{"osd":4,"host":"pve1"}`}},
		"ceph osd find 9 --format json": {{ExitCode: 2, Stderr: "Error ENOENT: osd.9 does not exist"}},
		"ceph osd find 7 --format json": {{ExitCode: 1, Stderr: "error connecting to the cluster"}},
		"ceph osd find 8 --format json": {{Stdout: "not json"}},
	}}
	osds := NewOSDs(query, &fakeExecutor{}, testNodes, WithQueryTarget(dispatch.Remote("pve1", "10.0.0.1")))
	ctx := context.Background()

	p, err := osds.Locate(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, engine.Placement{Node: "pve2", Address: "10.0.0.2", Kind: engine.KindDaemon}, p)

	p, err = osds.Locate(ctx, 4)
	require.NoError(t, err)
	assert.True(t, p.Local)

	p, err = osds.Locate(ctx, 9)
	require.NoError(t, err)
	assert.False(t, p.Found())

	_, err = osds.Locate(ctx, 7)
	assert.Error(t, err)

	_, err = osds.Locate(ctx, 8)
	assert.ErrorContains(t, err, "parse")

	assert.Equal(t, "pve1@10.0.0.1", query.calls[0].target)
}

func TestOSDRestart(t *testing.T) {
	query := &fakeExecutor{answers: map[string][]dispatch.Result{
		"systemctl is-active ceph-osd@3": {
			{ExitCode: 3, Stdout: "activating"},
			{Stdout: "active"},
		},
	}}
	exec := &fakeExecutor{}
	osds := NewOSDs(query, exec, testNodes, WithPoll(dispatch.Poll{Interval: 10 * time.Millisecond, Timeout: time.Second}))

	item := engine.Item{ID: 3, Placement: engine.Placement{Node: "pve2", Address: "10.0.0.2", Kind: engine.KindDaemon}}
	out := osds.Restart()(context.Background(), item)

	require.True(t, out.OK, out.Message)
	assert.Equal(t, []string{"systemctl restart ceph-osd@3"}, exec.lines())
	assert.Equal(t, []string{"systemctl is-active ceph-osd@3", "systemctl is-active ceph-osd@3"}, query.lines())
	assert.Equal(t, "pve2@10.0.0.2", query.calls[0].target)
}

func TestOSDRestartTimeout(t *testing.T) {
	query := &fakeExecutor{answers: map[string][]dispatch.Result{
		"systemctl is-active ceph-osd@3": {{ExitCode: 3, Stdout: "failed"}},
	}}
	osds := NewOSDs(query, &fakeExecutor{}, testNodes, WithPoll(dispatch.Poll{Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond}))

	out := osds.Restart()(context.Background(), engine.Item{ID: 3, Placement: engine.Placement{Node: "pve2", Address: "10.0.0.2"}})
	assert.False(t, out.OK)
	assert.Contains(t, out.Message, "failed")
}

func TestOSDRestartFailureAndDryRun(t *testing.T) {
	exec := &fakeExecutor{answers: map[string][]dispatch.Result{
		"systemctl restart ceph-osd@3": {{ExitCode: 5, Stderr: "Unit ceph-osd@3.service not found."}},
	}}
	query := &fakeExecutor{}
	item := engine.Item{ID: 3, Placement: engine.Placement{Node: "pve2", Address: "10.0.0.2"}}

	out := NewOSDs(query, exec, testNodes).Restart()(context.Background(), item)
	assert.False(t, out.OK)
	assert.Empty(t, query.calls, "no wait after a failed restart")

	out = NewOSDs(query, &fakeExecutor{dryRun: true}, testNodes).Restart()(context.Background(), item)
	assert.True(t, out.OK)
	assert.Empty(t, query.calls, "no wait in dry run")
}
