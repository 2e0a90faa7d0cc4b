// Package localmulti implements the local-multi provisioner: worker
// daemons launched as localhost child processes, one per node, supervised
// through a state machine mirroring node.State. Each command runs through
// `sh -c` from a configurable shell-command template.
package localmulti

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vurm-project/vurm/internal/cluster"
	"github.com/vurm-project/vurm/internal/node"
	"github.com/vurm-project/vurm/internal/vlog"
)

// PortAllocator hands out a process-wide, monotonically increasing stream
// of ports starting at a configured base. The spec requires this counter
// be shared across every instance of the provisioner in the process, so
// the allocator is a value the top-level application constructs once and
// injects into every Provisioner it builds.
type PortAllocator struct {
	next int64
}

// NewPortAllocator returns an allocator whose first Next() call yields
// basePort.
func NewPortAllocator(basePort int) *PortAllocator {
	return &PortAllocator{next: int64(basePort)}
}

// Next returns the next port in the sequence.
func (p *PortAllocator) Next() int {
	return int(atomic.AddInt64(&p.next, 1) - 1)
}

// Provisioner allocates localhost child-process nodes. It satisfies
// provisioner.Provisioner.
type Provisioner struct {
	commandTemplate string
	ports           *PortAllocator
	hostname        string
	log             vlog.Logger
}

// New returns a Provisioner that launches commandTemplate (with
// `{nodeName}`, `{hostname}`, `{port}` placeholders) for each node,
// drawing ports from ports. hostname is the value substituted for
// `{hostname}` and recorded as the node's config-line hostname; for
// local-multi this is always a loopback-reachable name, typically
// "localhost".
func New(commandTemplate string, ports *PortAllocator, hostname string) *Provisioner {
	return &Provisioner{
		commandTemplate: commandTemplate,
		ports:           ports,
		hostname:        hostname,
		log:             vlog.Named("localmulti"),
	}
}

// GetNodes always succeeds with count ready-to-spawn WAITING nodes; it does
// not enforce any ceiling on local resources.
func (p *Provisioner) GetNodes(_ context.Context, count int, names *cluster.NameIterator) ([]node.Node, error) {
	nodes := make([]node.Node, count)
	for i := 0; i < count; i++ {
		name := names.Next()
		port := p.ports.Next()
		nodes[i] = newNode(name, p.hostname, port, p.commandTemplate, p.log)
	}
	return nodes, nil
}

// Node supervises one child process. Its exported surface satisfies
// node.Node.
type Node struct {
	name     string
	hostname string
	port     int
	template string
	log      vlog.Logger

	mu    sync.Mutex
	state node.State
	cmd   *exec.Cmd
	done  chan struct{}
}

func newNode(name, hostname string, port int, template string, log vlog.Logger) *Node {
	return &Node{
		name:     name,
		hostname: hostname,
		port:     port,
		template: template,
		log:      log.With(map[string]string{"node": name}),
		state:    node.Waiting,
	}
}

// Spawn launches the child process, closes its stdin and records its PID.
// It returns once the process has started; it does not wait for the worker
// daemon to report readiness. The child is not bound to ctx: it keeps
// running after the spawning request ends, until Release kills it.
func (n *Node) Spawn(_ context.Context) error {
	n.mu.Lock()
	state := n.state
	n.mu.Unlock()
	node.GuardState("spawn", state, node.Waiting)

	command := renderTemplate(n.template, n.name, n.hostname, n.port)

	cmd := exec.Command("sh", "-c", command)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("attach stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attach stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attach stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker daemon: %w", err)
	}
	// The child never reads stdin; close it immediately so it doesn't
	// block waiting on input that will never arrive.
	stdin.Close()

	n.mu.Lock()
	n.cmd = cmd
	n.state = node.Started
	n.done = make(chan struct{})
	n.mu.Unlock()

	n.log.Info("worker daemon started", "pid", cmd.Process.Pid, "port", n.port)

	go n.drainLog("stdout", stdout)
	go n.drainLog("stderr", stderr)
	go n.wait()

	return nil
}

func (n *Node) drainLog(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		n.log.Debug(scanner.Text(), "stream", stream)
	}
}

func (n *Node) wait() {
	err := n.cmd.Wait()

	n.mu.Lock()
	wasTerminating := n.state == node.Terminating
	n.state = node.Stopped
	done := n.done
	n.mu.Unlock()

	if err != nil && !wasTerminating {
		n.log.Warn("worker daemon exited unexpectedly", "error", err.Error())
	} else {
		n.log.Info("worker daemon stopped")
	}

	if done != nil {
		close(done)
	}
}

// Release terminates the child process if running; idempotent otherwise.
func (n *Node) Release(ctx context.Context) error {
	n.mu.Lock()
	if n.state != node.Started {
		n.mu.Unlock()
		return nil
	}
	n.state = node.Terminating
	cmd := n.cmd
	done := n.done
	n.mu.Unlock()

	n.log.Debug("terminating worker daemon")
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			n.log.Warn("failed to signal worker daemon", "error", err.Error())
		}
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// RenderConfigLine renders this node's scheduler config line.
func (n *Node) RenderConfigLine() string {
	return node.ConfigLine(n.name, n.hostname, n.port)
}

// Running reports whether the child process is currently started.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state == node.Started
}

// Name returns the node's stable name.
func (n *Node) Name() string { return n.name }

// renderTemplate substitutes the `{nodeName}`, `{hostname}`, `{port}`
// placeholders in a shell-command template.
func renderTemplate(template, nodeName, hostname string, port int) string {
	r := strings.NewReplacer(
		"{nodeName}", nodeName,
		"{hostname}", hostname,
		"{port}", fmt.Sprintf("%d", port),
	)
	return r.Replace(template)
}
