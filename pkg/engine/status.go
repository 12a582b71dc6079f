package engine

import (
	"fmt"
)

// ItemStatus represents where an item is in its per-run state machine:
// pending -> resolving -> {skipped | dispatching -> {succeeded | failed}}.
type ItemStatus string

const (
	// ItemPending indicates the item has not been reached yet.
	ItemPending ItemStatus = "pending"

	// ItemResolving indicates the item's hosting node is being looked up.
	ItemResolving ItemStatus = "resolving"

	// ItemDispatching indicates the per-item callback is running.
	ItemDispatching ItemStatus = "dispatching"

	// ItemSucceeded indicates the callback reported success.
	ItemSucceeded ItemStatus = "succeeded"

	// ItemFailed indicates the callback reported failure. There is no retry.
	ItemFailed ItemStatus = "failed"

	// ItemSkipped indicates the entity was not found anywhere in the cluster.
	ItemSkipped ItemStatus = "skipped"
)

// IsTerminal returns true if the status is a final state for this run.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemSucceeded || s == ItemFailed || s == ItemSkipped
}

// Validate checks if the item status is valid.
func (s ItemStatus) Validate() error {
	switch s {
	case ItemPending, ItemResolving, ItemDispatching,
		ItemSucceeded, ItemFailed, ItemSkipped:
		return nil
	default:
		return fmt.Errorf("invalid item status: %s", s)
	}
}

// canTransition reports whether the state machine allows moving from s to next.
func (s ItemStatus) canTransition(next ItemStatus) bool {
	switch s {
	case ItemPending:
		return next == ItemResolving || next == ItemDispatching
	case ItemResolving:
		return next == ItemSkipped || next == ItemDispatching || next == ItemFailed
	case ItemDispatching:
		return next == ItemSucceeded || next == ItemFailed
	default:
		return false
	}
}

// RunStatus represents the overall result of a bulk run.
type RunStatus string

const (
	// RunSucceeded indicates every attempted item succeeded.
	RunSucceeded RunStatus = "succeeded"

	// RunPartial indicates some items failed and some succeeded.
	RunPartial RunStatus = "partial"

	// RunFailed indicates every attempted item failed.
	RunFailed RunStatus = "failed"

	// RunInterrupted indicates the run was stopped before exhausting its IDs.
	RunInterrupted RunStatus = "interrupted"

	// RunEmpty indicates no item was attempted (all skipped or no IDs).
	RunEmpty RunStatus = "empty"
)

// MissPolicy decides how an entity the locator cannot find is counted.
type MissPolicy string

const (
	// MissSkips records a not-found entity as skipped. It is not attempted
	// and does not affect the exit status.
	MissSkips MissPolicy = "skip"

	// MissFails records a not-found entity as an attempted, failed item.
	MissFails MissPolicy = "fail"
)

// Validate checks if the miss policy is valid. The zero value is accepted
// and behaves like MissSkips.
func (p MissPolicy) Validate() error {
	switch p {
	case "", MissSkips, MissFails:
		return nil
	default:
		return fmt.Errorf("invalid miss policy: %s", p)
	}
}
