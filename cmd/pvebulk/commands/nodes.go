package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pvebulk/pvebulk/pkg/args"
	"github.com/pvebulk/pvebulk/pkg/engine"
)

func newNodesCommand(a *app) *cobra.Command {
	schema := args.MustCompile(commonFlags)

	return &cobra.Command{
		Use:                "nodes",
		Short:              "List cluster members",
		Long:               `List the cluster members with their addresses, marking the local host.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, tokens []string) error {
			v, err := schema.Parse(tokens)
			if errors.Is(err, args.ErrHelp) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s", cmd.Long, schema.Usage(cmd.CommandPath()))
				return nil
			}
			if err != nil {
				return err
			}
			return a.listNodes(cmd.Context(), v)
		},
	}
}

func (a *app) listNodes(ctx context.Context, v args.Values) error {
	s, err := a.open(ctx, v)
	if err != nil {
		return err
	}
	defer s.Close(context.WithoutCancel(ctx))

	if err := s.resolver.RequireStore(ctx); err != nil {
		return err
	}
	m, err := s.resolver.Membership(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	if m.Clustered() {
		quorum := "quorate"
		if !m.Quorate {
			quorum = "NOT quorate"
		}
		fmt.Fprintf(w, "cluster %s (%s)\n", m.ClusterName, quorum)
	} else {
		fmt.Fprintln(w, "standalone node")
	}
	fmt.Fprintln(w, "NAME\tID\tADDRESS\tSTATUS\tLOCAL")
	for _, n := range m.Nodes {
		status := "offline"
		if n.Online {
			status = "online"
		}
		local := ""
		if n.Local || (!m.Clustered() && n.Name == m.LocalName) {
			local = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", n.Name, n.ID, n.Address, status, local)
	}
	return w.Flush()
}

func newLocateCommand(a *app) *cobra.Command {
	return newBulkCommand(a, bulkCommand{
		use:   "locate <id...>",
		short: "Show which node hosts each guest",
		long: `Print the hosting node, address and kind of each listed guest. IDs not
found anywhere in the cluster are reported as skipped.`,
		example:  `  pvebulk locate 100 205 310`,
		schema:   "ids:list",
		readOnly: true,
		build: func(s *session, v args.Values) (engine.Operation, error) {
			ids, err := parseIDs(v.List("ids"))
			if err != nil {
				return engine.Operation{}, err
			}
			return engine.Operation{
				Name:    "locate",
				Source:  engine.List(ids...),
				Locator: s.resolver,
				Callback: func(_ context.Context, item engine.Item) engine.Outcome {
					p := item.Placement
					fmt.Fprintf(s.out, "%d\t%s\t%s\t%s\n", item.ID, p.Node, p.Address, p.Kind)
					return engine.Success(p.String())
				},
			}, nil
		},
	})
}

// parseIDs converts list tokens to guest IDs.
func parseIDs(tokens []string) ([]int, error) {
	ids := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		id, err := strconv.Atoi(tok)
		if err != nil || id < args.MinVMID || id > args.MaxVMID {
			return nil, &engine.UsageError{
				Param:  "ids",
				Value:  tok,
				Reason: fmt.Sprintf("must be an ID between %d and %d", args.MinVMID, args.MaxVMID),
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}
