package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pvebulk/pvebulk/pkg/args"
	"github.com/pvebulk/pvebulk/pkg/engine"
)

// bulkCommand describes a subcommand that runs one operation over IDs.
type bulkCommand struct {
	use     string
	short   string
	long    string
	example string

	// schema declares the subcommand's own parameters; commonFlags are
	// appended.
	schema string

	// readOnly commands neither execute platform commands nor need root.
	readOnly bool

	// quorum requires a clustered, quorate membership.
	quorum bool

	// destructive commands ask for confirmation.
	destructive bool

	build func(s *session, v args.Values) (engine.Operation, error)
}

// newBulkCommand turns a bulkCommand into a cobra command. Cobra's flag
// parsing is disabled: the schema validates every token.
func newBulkCommand(a *app, b bulkCommand) *cobra.Command {
	schema := args.MustCompile(b.schema + " " + commonFlags)

	return &cobra.Command{
		Use:                b.use,
		Short:              b.short,
		Long:               b.long,
		Example:            b.example,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, tokens []string) error {
			values, err := schema.Parse(tokens)
			if errors.Is(err, args.ErrHelp) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s", cmd.Long, schema.Usage(cmd.CommandPath()))
				if cmd.Example != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "\nExamples:\n%s\n", cmd.Example)
				}
				return nil
			}
			if err != nil {
				return err
			}
			return a.runBulk(cmd.Context(), b, values)
		},
	}
}

// runBulk checks preconditions, builds the operation and runs it. Nothing is
// executed when a precondition fails.
func (a *app) runBulk(ctx context.Context, b bulkCommand, v args.Values) (err error) {
	if !b.readOnly && !v.Bool("dry-run") {
		if err := a.requireRoot(); err != nil {
			return err
		}
	}

	s, err := a.open(ctx, v)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("failed to flush telemetry")
		}
	}()

	if err := s.resolver.RequireStore(ctx); err != nil {
		return err
	}
	if b.quorum {
		if err := s.resolver.RequireCluster(ctx); err != nil {
			return err
		}
	}

	op, err := b.build(s, v)
	if err != nil {
		return err
	}
	op.MissPolicy = engine.MissPolicy(v.String("on-missing"))

	if b.destructive {
		if err := a.confirmDestructive(ctx, v, fmt.Sprintf("%s %s", op.Name, op.Source)); err != nil {
			return err
		}
	}

	summary, err := s.runner.Run(ctx, op)
	if err != nil {
		return err
	}
	return summary.Err()
}

// idRange returns the range first..last, or the single ID first when last
// was omitted. An inverted range is rejected.
func idRange(v args.Values) (engine.RangeSource, error) {
	first := v.Int("first")
	last := v.IntOr("last", first)
	if last < first {
		return engine.RangeSource{}, &engine.UsageError{
			Param:  "last",
			Value:  fmt.Sprint(last),
			Reason: fmt.Sprintf("must not be below first (%d)", first),
		}
	}
	return engine.Range(first, last), nil
}
