// Package engine runs one operation over a set of entity IDs and reports
// the outcome.
//
// # Overview
//
// An Operation pairs a Source of IDs with an optional Locator and a
// Callback. The Runner walks the IDs strictly in order, one at a time:
//
//  1. Locate - resolve the hosting node of the ID (node-aware operations)
//  2. Invoke - call the Callback with the resolved Item
//  3. Record - store the ItemResult and update the Summary
//
// A failing item never stops the run. Cancelling the context stops the
// run before the next item starts; the item in flight finishes.
//
// # Sources
//
//   - RangeSource: an inclusive first..last range, empty when inverted
//   - ListSource: an explicit list, duplicates processed once
//
// # Missing entities
//
// IDs the Locator cannot find are skipped by default. With MissFails they
// count as failures and appear in the failed ID list.
//
// # Errors and exit codes
//
// Errors carry a class so the command line can map them to an exit code:
//
//	UsageError         -> ExitUsage (64)
//	PreconditionError  -> 1
//	ErrItemsFailed     -> 1
//
// ExecutionFailure and TimeoutFailure describe why a single item failed and
// are folded into its result rather than returned from Run.
//
// # Example
//
//	runner := engine.NewRunner(engine.WithLogger(logger))
//	summary, err := runner.Run(ctx, engine.Operation{
//		Name:     "power start",
//		Source:   engine.Range(100, 120),
//		Locator:  resolver,
//		Callback: start,
//	})
//	if err != nil {
//		return err
//	}
//	return summary.Err()
package engine
