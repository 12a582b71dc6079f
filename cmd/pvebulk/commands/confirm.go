package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/pvebulk/pvebulk/pkg/args"
	"github.com/pvebulk/pvebulk/pkg/engine"
)

// confirmDestructive asks before a destructive run. --yes and --dry-run
// skip the question; without a terminal --yes is mandatory.
func (a *app) confirmDestructive(ctx context.Context, v args.Values, what string) error {
	if v.Bool("yes") || v.Bool("dry-run") {
		return nil
	}
	if !a.isTerminal() {
		return &engine.UsageError{
			Param:  "yes",
			Reason: fmt.Sprintf("required to run %q without a terminal", what),
		}
	}

	ok, err := a.confirm(ctx, fmt.Sprintf("Run %s? This cannot be undone.", what))
	if errors.Is(err, huh.ErrUserAborted) {
		ok, err = false, nil
	}
	if err != nil {
		return &engine.PreconditionError{Check: "confirmation", Message: "prompt failed", Err: err}
	}
	if !ok {
		return &engine.PreconditionError{Check: "confirmation", Message: "aborted by operator"}
	}
	return nil
}

func huhConfirm(ctx context.Context, title string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).RunWithContext(ctx)
	return ok, err
}
