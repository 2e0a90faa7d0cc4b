// Package cluster implements the virtual cluster: a named set of nodes
// that the controller spawns, releases, and splices into the scheduler
// config as one partition stanza.
package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vurm-project/vurm/internal/node"
	"github.com/vurm-project/vurm/internal/vlog"
)

const (
	// DefaultPrefix is the fixed prefix prepended to every generated
	// cluster name.
	DefaultPrefix = "vc-"
	// IDLength is the length, in hex characters, of a generated cluster id.
	IDLength = 7
)

// NamingAuthority hands out process-wide-unique cluster names. It is owned
// by the top-level application and injected into the controller rather
// than held as package-level mutable state.
type NamingAuthority struct {
	prefix string
	mu     sync.Mutex
	seen   map[string]struct{}
}

// NewNamingAuthority returns a NamingAuthority using prefix for generated
// cluster names. An empty prefix defaults to DefaultPrefix.
func NewNamingAuthority(prefix string) *NamingAuthority {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &NamingAuthority{prefix: prefix, seen: make(map[string]struct{})}
}

// NewClusterName generates a cluster name unique for the lifetime of this
// authority: prefix plus a random IDLength-character lowercase-hex id.
// Retries on the (astronomically unlikely) collision.
func (a *NamingAuthority) NewClusterName() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for attempt := 0; attempt < 100; attempt++ {
		id, err := randomHexID(IDLength)
		if err != nil {
			return "", fmt.Errorf("generate cluster id: %w", err)
		}
		name := a.prefix + id
		if _, dup := a.seen[name]; dup {
			continue
		}
		a.seen[name] = struct{}{}
		return name, nil
	}
	return "", fmt.Errorf("could not generate a unique cluster name after 100 attempts")
}

// Release forgets name, allowing it to be generated again. The source never
// reclaims names for the life of the process; VURM reclaims on release so a
// long-lived controller doesn't exhaust the id space under churn.
func (a *NamingAuthority) Release(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.seen, name)
}

// NodeFactory builds the provisioner-specific Node for the given stable
// node name. Clusters are provisioner-agnostic: they only assign names and
// aggregate lifecycle calls, so each node is produced by a factory supplied
// by the caller (the controller, acting on behalf of whichever provisioner
// is being drawn from).
type NodeFactory func(nodeName string) node.Node

// NameIterator hands out the `nd-<clusterID>-<index>` sequence for one
// cluster under construction, with index zero-padded to width. Next is
// safe for concurrent use so multiple provisioners can draw from the same
// sequence while the controller fans a request out.
type NameIterator struct {
	clusterID string
	width     int
	next      int64
}

// NewNameIterator returns an iterator for clusterID sized for up to
// requestedSize nodes: the zero-pad width is fixed at creation time from
// the caller's requested size, since later provisioners must be able to
// name nodes before the final, possibly smaller, actual count is known.
func NewNameIterator(clusterID string, requestedSize int) *NameIterator {
	return &NameIterator{clusterID: clusterID, width: indexWidth(requestedSize)}
}

// Next returns the next name in the sequence, starting at index 0.
func (it *NameIterator) Next() string {
	i := atomic.AddInt64(&it.next, 1) - 1
	return fmt.Sprintf("nd-%s-%0*d", it.clusterID, it.width, i)
}

// Cluster is a named set of nodes with deterministic member names, owned
// for its lifetime by the controller.
type Cluster struct {
	name  string
	nodes []node.Node
	log   vlog.Logger
}

// NewFromNodes constructs a Cluster named name from an already-named,
// already-ordered list of nodes. This is the controller's primary
// constructor: nodes are produced by provisioners drawing from a shared
// NameIterator as they're acquired, so by the time a cluster can be formed
// its nodes already carry their final names.
func NewFromNodes(name string, nodes []node.Node) *Cluster {
	return &Cluster{
		name:  name,
		nodes: nodes,
		log:   vlog.Named("cluster").With(map[string]string{"cluster": name}),
	}
}

// New constructs a Cluster named name with n freshly named nodes, in
// construction order, using a private NameIterator sized to n. It is a
// convenience for single-provisioner callers and tests; multi-provisioner
// acquisition should share one NameIterator across provisioners and finish
// with NewFromNodes instead.
func New(name string, n int, make_ NodeFactory) *Cluster {
	id := strings.TrimPrefix(name, DefaultPrefix)
	it := NewNameIterator(id, n)

	nodes := make([]node.Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = make_(it.Next())
	}

	return NewFromNodes(name, nodes)
}

// Name returns the cluster's name.
func (c *Cluster) Name() string { return c.name }

// Nodes returns the cluster's nodes in construction order. Callers must not
// mutate the returned slice.
func (c *Cluster) Nodes() []node.Node { return c.nodes }

// SpawnResult pairs a node with the error (if any) from spawning it.
type SpawnResult struct {
	Node node.Node
	Err  error
}

// SpawnAll spawns every node concurrently and waits for all of them to
// finish, successfully or not. It never itself decides pass/fail policy —
// that's the controller's job — it just aggregates.
func (c *Cluster) SpawnAll(ctx context.Context) []SpawnResult {
	return c.fanOut(ctx, func(ctx context.Context, n node.Node) error {
		return n.Spawn(ctx)
	})
}

// ReleaseAll releases every node concurrently, tolerating nodes in any
// state (Release is idempotent per-node), and waits for all of them.
func (c *Cluster) ReleaseAll(ctx context.Context) []SpawnResult {
	return c.fanOut(ctx, func(ctx context.Context, n node.Node) error {
		return n.Release(ctx)
	})
}

func (c *Cluster) fanOut(ctx context.Context, op func(context.Context, node.Node) error) []SpawnResult {
	results := make([]SpawnResult, len(c.nodes))

	var wg sync.WaitGroup
	for i, n := range c.nodes {
		wg.Add(1)
		go func(i int, n node.Node) {
			defer wg.Done()
			err := op(ctx, n)
			if err != nil {
				c.log.Warn("node operation failed", "node", n.Name(), "error", err.Error())
			}
			results[i] = SpawnResult{Node: n, Err: err}
		}(i, n)
	}
	wg.Wait()

	return results
}

// ConfigFragment renders the bracketed scheduler stanza for this cluster.
// The text is byte-stable: it depends only on the cluster's name and its
// nodes' rendered config lines, in construction order, so it can be used
// both to insert the cluster into the scheduler config and, later, to
// locate and remove it by exact match.
func (c *Cluster) ConfigFragment() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# [%s]\n", c.name)
	for _, n := range c.nodes {
		b.WriteString(n.RenderConfigLine())
		b.WriteByte('\n')
	}

	id := strings.TrimPrefix(c.name, DefaultPrefix)
	fmt.Fprintf(&b, "PartitionName=%s Nodes=nd-%s-[0-%d] Default=NO MaxTime=INFINITE State=UP\n",
		c.name, id, len(c.nodes)-1)
	fmt.Fprintf(&b, "# [/%s]\n", c.name)

	return b.String()
}

// indexWidth returns len(strconv.Itoa(n-1)) for n >= 1, the zero-padded
// width the spec requires for node indices within a cluster of size n.
func indexWidth(n int) int {
	if n <= 1 {
		return 1
	}
	return len(strconv.Itoa(n - 1))
}
