package commands

import (
	"github.com/spf13/cobra"

	"github.com/pvebulk/pvebulk/pkg/args"
	"github.com/pvebulk/pvebulk/pkg/engine"
	"github.com/pvebulk/pvebulk/pkg/ops"
)

func newCephCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ceph",
		Short: "Bulk operations on Ceph daemons",
	}

	cmd.AddCommand(newBulkCommand(a, bulkCommand{
		use:   "restart-osd <first> [last]",
		short: "Restart OSDs one at a time",
		long: `Restart every OSD in first..last on the node that hosts it and wait until
its systemd unit reports active before moving to the next one. An OSD that
does not come back within the configured wait timeout counts as failed.
Requires a quorate cluster.`,
		example: `  pvebulk ceph restart-osd 0 11`,
		schema:  "first:int last:int?",
		quorum:  true,
		build: func(s *session, v args.Values) (engine.Operation, error) {
			source, err := idRange(v)
			if err != nil {
				return engine.Operation{}, err
			}
			if source.Start < 0 {
				return engine.Operation{}, &engine.UsageError{Param: "first", Value: source.String(), Reason: "OSD IDs are not negative"}
			}

			osds := ops.NewOSDs(s.query, s.exec, s.resolver,
				ops.WithQueryTarget(s.seed),
				ops.WithPoll(s.cfg.Poll()),
				ops.WithOSDLogger(s.tel.Logger.NewComponentLogger("ceph")),
			)
			return engine.Operation{
				Name:     "ceph restart-osd",
				Source:   source,
				Locator:  osds,
				Callback: osds.Restart(),
			}, nil
		},
	}))

	return cmd
}
