// Package provisioner defines the contract the controller draws nodes
// from. Each backend (local-multi child processes, remote-virt domains)
// implements Provisioner directly — there is no adapter/registry layer, per
// the design note that a language-level interface already gives the
// controller exactly the dispatch it needs.
package provisioner

import (
	"context"

	"github.com/vurm-project/vurm/internal/cluster"
	"github.com/vurm-project/vurm/internal/node"
)

// Provisioner allocates nodes on request. GetNodes always returns as many
// nodes as it can — up to count — and never errors to signal a resource
// ceiling: a provisioner that can only satisfy fewer than count nodes
// simply returns fewer. names supplies the stable nodeName each returned
// node must carry, drawn in the same order nodes are returned.
//
// Nodes are returned WAITING, not yet spawned; the caller decides whether
// and when to spawn them.
type Provisioner interface {
	GetNodes(ctx context.Context, count int, names *cluster.NameIterator) ([]node.Node, error)
}
