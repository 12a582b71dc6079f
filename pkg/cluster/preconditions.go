package cluster

import (
	"context"
	"os"

	"github.com/pvebulk/pvebulk/pkg/engine"
)

// geteuid is replaced in tests.
var geteuid = os.Geteuid

// RequireRoot fails unless the process runs with effective UID 0.
func RequireRoot() error {
	if geteuid() != 0 {
		return &engine.PreconditionError{
			Check:   "root",
			Message: "this command must be run as root",
		}
	}
	return nil
}

// RequireStore fails when the cluster store cannot be read.
func (r *Resolver) RequireStore(ctx context.Context) error {
	if _, err := r.Membership(ctx); err != nil {
		return &engine.PreconditionError{
			Check:   "store",
			Message: "cannot read the cluster filesystem",
			Err:     err,
		}
	}
	return nil
}

// RequireCluster fails unless this host belongs to a quorate cluster.
func (r *Resolver) RequireCluster(ctx context.Context) error {
	if err := r.RequireStore(ctx); err != nil {
		return err
	}

	m, _ := r.Membership(ctx)
	switch {
	case !m.Clustered():
		return &engine.PreconditionError{
			Check:   "cluster",
			Message: "node " + m.LocalName + " is not a member of a cluster",
		}
	case !m.Quorate:
		return &engine.PreconditionError{
			Check:   "cluster",
			Message: "cluster " + m.ClusterName + " is not quorate",
		}
	}
	return nil
}
