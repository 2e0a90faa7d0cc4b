// Package controller implements the allocation engine (C7): orchestrating
// provisioners, editing the scheduler config under an exclusive lock, and
// compensating on failure. Per-node operations run on their own
// goroutines/channels; the rest follows direct sequential control flow.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vurm-project/vurm/internal/cluster"
	"github.com/vurm-project/vurm/internal/metrics"
	"github.com/vurm-project/vurm/internal/node"
	"github.com/vurm-project/vurm/internal/provisioner"
	"github.com/vurm-project/vurm/internal/util/async"
	"github.com/vurm-project/vurm/internal/vlog"
	"github.com/vurm-project/vurm/internal/vurmerr"
)

const lockRetryInterval = 50 * time.Millisecond

// Controller owns the cluster registry and orchestrates provisioners. It
// is the single instance shared by the RPC server's handlers.
type Controller struct {
	provisioners         []provisioner.Provisioner
	naming               *cluster.NamingAuthority
	schedulerConfigPath  string
	reconfigureCmd       string
	metrics              metrics.Recorder
	log                  vlog.Logger

	mu       sync.Mutex
	clusters map[string]*cluster.Cluster
}

// Config bundles a Controller's fixed configuration.
type Config struct {
	Provisioners        []provisioner.Provisioner
	Naming              *cluster.NamingAuthority
	SchedulerConfigPath string
	ReconfigureCmd      string
	Metrics             metrics.Recorder
}

// New returns a Controller with an empty cluster registry.
func New(cfg Config) *Controller {
	return &Controller{
		provisioners:        cfg.Provisioners,
		naming:              cfg.Naming,
		schedulerConfigPath: cfg.SchedulerConfigPath,
		reconfigureCmd:      cfg.ReconfigureCmd,
		metrics:             cfg.Metrics,
		log:                 vlog.Named("controller"),
		clusters:            make(map[string]*cluster.Cluster),
	}
}

// CreateVirtualCluster allocates size nodes (falling back to as few as
// minSize, which defaults to size) across the configured provisioners in
// order, splices the resulting cluster into the scheduler config, registers
// the cluster, and spawns every node. A failure while acquiring nodes or
// editing the scheduler config is compensated by releasing whatever nodes
// it had already obtained and leaving the registry and scheduler config
// untouched. Node spawn failures are not compensated: they are logged, the
// cluster stays registered and in the scheduler config, and the call still
// returns the cluster's name.
func (c *Controller) CreateVirtualCluster(ctx context.Context, size int, minSize *int) (clusterName string, err error) {
	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		c.metrics.ObserveAllocate(result, time.Since(start))
	}()

	effectiveMin := size
	if minSize != nil {
		effectiveMin = *minSize
	}

	name, err := c.naming.NewClusterName()
	if err != nil {
		return "", fmt.Errorf("generate cluster name: %w", err)
	}

	nodes, acquireErr := c.acquireNodes(ctx, name, size)
	if acquireErr != nil {
		c.releaseAcquired(ctx, nodes)
		c.naming.Release(name)
		return "", acquireErr
	}

	if len(nodes) < effectiveMin {
		c.log.Warn("insufficient resources, releasing acquired nodes",
			"cluster", name, "got", len(nodes), "want", effectiveMin)
		c.releaseAcquired(ctx, nodes)
		c.naming.Release(name)
		return "", &vurmerr.InsufficientResources{Got: len(nodes), Want: effectiveMin}
	}

	vc := cluster.NewFromNodes(name, nodes)

	if err := c.updateSchedulerConfig(ctx, editAdd, "", vc.ConfigFragment(), true); err != nil {
		c.log.Error(err, "reconfigure failed, rolling back cluster", "cluster", name)
		c.releaseAcquired(ctx, nodes)
		// Undo the (possibly partial) append with notify=false: nothing to
		// reconfigure for an undo of a cluster that never took effect.
		_ = c.updateSchedulerConfig(ctx, editRemove, vc.ConfigFragment(), "", false)
		c.naming.Release(name)
		return "", err
	}

	c.mu.Lock()
	c.clusters[name] = vc
	c.mu.Unlock()
	c.metrics.SetClustersTotal(c.clusterCount())

	results := vc.SpawnAll(ctx)
	for _, r := range results {
		if r.Err != nil {
			c.log.Warn("node spawn failed after reconfigure; cluster remains registered",
				"cluster", name, "node", r.Node.Name(), "error", r.Err.Error())
		}
	}

	c.log.Info("virtual cluster created", "cluster", name, "nodes", len(nodes))
	return name, nil
}

// acquireNodes draws up to size nodes from the configured provisioners, in
// order, stopping as soon as size is reached. It never errors on its own
// account: a provisioner short of nodes simply yields fewer, per the
// provisioner contract. A non-nil error here means something in the
// underlying RPC layer genuinely failed, not that resources ran short; the
// nodes returned so far, including any the failing provisioner returned
// alongside its error, come back with it so the caller can release them.
func (c *Controller) acquireNodes(ctx context.Context, clusterName string, size int) ([]node.Node, error) {
	id := trimClusterPrefix(clusterName)
	names := cluster.NewNameIterator(id, size)

	var acc []node.Node
	for _, p := range c.provisioners {
		if len(acc) >= size {
			break
		}
		want := size - len(acc)
		got, err := p.GetNodes(ctx, want, names)
		acc = append(acc, got...)
		if err != nil {
			return acc, fmt.Errorf("acquire nodes: %w", err)
		}
	}
	return acc, nil
}

func (c *Controller) releaseAcquired(ctx context.Context, nodes []node.Node) {
	if len(nodes) == 0 {
		return
	}
	vc := cluster.NewFromNodes("", nodes)
	for _, r := range vc.ReleaseAll(ctx) {
		if r.Err != nil {
			c.log.Warn("compensating release failed", "node", r.Node.Name(), "error", r.Err.Error())
		}
	}
}

// DestroyVirtualCluster releases every node in the named cluster, removes
// it from the registry, and removes its fragment from the scheduler
// config. The cluster is dropped from the registry before the config edit
// is attempted; a ReconfigurationError here surfaces to the caller with
// the cluster already gone, by design — the administrator must reconcile
// the live scheduler config by hand in that case.
func (c *Controller) DestroyVirtualCluster(ctx context.Context, name string) error {
	c.mu.Lock()
	vc, ok := c.clusters[name]
	if ok {
		delete(c.clusters, name)
	}
	c.mu.Unlock()

	if !ok {
		return &vurmerr.InvalidClusterName{Name: name}
	}

	c.metrics.SetClustersTotal(c.clusterCount())
	c.naming.Release(name)

	vc.ReleaseAll(ctx)

	fragment := vc.ConfigFragment()
	if err := c.updateSchedulerConfig(ctx, editRemove, fragment, "", true); err != nil {
		return err
	}

	c.log.Info("virtual cluster destroyed", "cluster", name)
	return nil
}

// DestroyAllVirtualClusters releases and destroys every registered
// cluster concurrently, using async.RunParallel so one cluster's teardown
// can't stall another's.
func (c *Controller) DestroyAllVirtualClusters(ctx context.Context) error {
	c.mu.Lock()
	names := make([]string, 0, len(c.clusters))
	for name := range c.clusters {
		names = append(names, name)
	}
	c.mu.Unlock()

	tasks := make([]async.Task, len(names))
	for i, name := range names {
		name := name
		tasks[i] = async.Task{
			Name: name,
			Func: func(ctx context.Context) error {
				return c.DestroyVirtualCluster(ctx, name)
			},
		}
	}

	return async.RunParallel(ctx, tasks)
}

func (c *Controller) clusterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clusters)
}

func trimClusterPrefix(name string) string {
	if len(name) > len(cluster.DefaultPrefix) && name[:len(cluster.DefaultPrefix)] == cluster.DefaultPrefix {
		return name[len(cluster.DefaultPrefix):]
	}
	return name
}
