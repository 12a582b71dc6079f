package engine

import (
	"context"
	"fmt"
	"time"
)

// EntityKind distinguishes virtual machines from containers.
type EntityKind string

const (
	// KindVM is a QEMU virtual machine, managed with qm.
	KindVM EntityKind = "qemu"

	// KindContainer is an LXC container, managed with pct.
	KindContainer EntityKind = "lxc"

	// KindDaemon is a storage daemon (e.g. a Ceph OSD), managed with systemctl.
	KindDaemon EntityKind = "daemon"
)

// Placement is where an entity currently lives.
type Placement struct {
	// Node is the hosting cluster member's name.
	Node string `json:"node"`

	// Address is the hosting node's address.
	Address string `json:"address"`

	// Kind is the entity kind, when the locator knows it.
	Kind EntityKind `json:"kind,omitempty"`

	// Local is true when Address is bound on this host.
	Local bool `json:"local"`
}

// NotFound is the sentinel placement returned for entities that do not exist
// anywhere in the cluster.
var NotFound = Placement{}

// Found returns true unless p is the NotFound sentinel.
func (p Placement) Found() bool {
	return p.Node != "" || p.Address != ""
}

// String renders the placement for logs and reports.
func (p Placement) String() string {
	if !p.Found() {
		return "not found"
	}
	if p.Local {
		return fmt.Sprintf("%s (%s, local)", p.Node, p.Address)
	}
	return fmt.Sprintf("%s (%s)", p.Node, p.Address)
}

// Locator maps an entity ID to its current placement. Implementations return
// NotFound, not an error, for entities that do not exist.
type Locator interface {
	Locate(ctx context.Context, id int) (Placement, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context, id int) (Placement, error)

// Locate calls f(ctx, id).
func (f LocatorFunc) Locate(ctx context.Context, id int) (Placement, error) {
	return f(ctx, id)
}

// Item is what a callback receives for one entity.
type Item struct {
	// ID is the entity ID.
	ID int

	// Placement is the resolved placement. It is NotFound when the operation
	// has no locator.
	Placement Placement
}

// Outcome is what a callback returns for one entity.
type Outcome struct {
	// OK reports success.
	OK bool

	// Message is an optional human-readable detail, typically the error text
	// on failure.
	Message string
}

// Success returns a successful outcome with an optional message.
func Success(msg string) Outcome {
	return Outcome{OK: true, Message: msg}
}

// Failure returns a failed outcome built from err.
func Failure(err error) Outcome {
	if err == nil {
		return Outcome{OK: false}
	}
	return Outcome{OK: false, Message: err.Error()}
}

// FromError returns Success("") when err is nil and Failure(err) otherwise.
func FromError(err error) Outcome {
	if err == nil {
		return Success("")
	}
	return Failure(err)
}

// Callback is the per-item operation of a bulk run.
type Callback func(ctx context.Context, item Item) Outcome

// Operation describes one bulk run.
type Operation struct {
	// Name identifies the operation in logs, metrics and the summary.
	Name string

	// Source yields the IDs to process.
	Source Source

	// Locator makes the operation node-aware. When nil the callback is invoked
	// for every ID without resolution.
	Locator Locator

	// Callback runs once per located ID.
	Callback Callback

	// MissPolicy decides how unresolved IDs are counted.
	MissPolicy MissPolicy
}

// ItemResult records how one item ended.
type ItemResult struct {
	ID        int           `json:"id"`
	Status    ItemStatus    `json:"status"`
	Message   string        `json:"message,omitempty"`
	Placement Placement     `json:"placement"`
	Duration  time.Duration `json:"duration"`
}
