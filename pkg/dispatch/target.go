package dispatch

import (
	"github.com/pvebulk/pvebulk/pkg/engine"
)

// Target is where a command runs: this host, or a node reached over SSH.
type Target struct {
	Node    string
	Address string
	local   bool
}

// Local is the sentinel target for this host.
var Local = Target{Node: "local", local: true}

// Remote returns a target for the node at address.
func Remote(node, address string) Target {
	return Target{Node: node, Address: address}
}

// TargetFor returns Local when the placement is on this host and a remote
// target for the placement's node otherwise.
func TargetFor(p engine.Placement) Target {
	if p.Local {
		return Local
	}
	return Remote(p.Node, p.Address)
}

// IsLocal reports whether t is the Local sentinel.
func (t Target) IsLocal() bool {
	return t.local
}

func (t Target) String() string {
	switch {
	case t.local:
		return "local"
	case t.Node != "" && t.Address != "":
		return t.Node + "@" + t.Address
	case t.Address != "":
		return t.Address
	default:
		return t.Node
	}
}
