package provisioner

import (
	"context"
	"net"
	"net/rpc"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vurm-project/vurm/internal/cluster"
	"github.com/vurm-project/vurm/internal/remotevirt/agent"
	"github.com/vurm-project/vurm/internal/rpcpool"
	"github.com/vurm-project/vurm/internal/vlog"
)

const sampleTemplate = `<domain type='kvm'>
  <name>{nodeName}</name>
  <devices>
    <disk type='file' device='disk'>
      <source file='/images/base.qcow2'/>
    </disk>
  </devices>
</domain>`

// fakeAgentService stands in for the real agent.Service in tests,
// recording the description it was given and returning a fixed hostname,
// without touching libvirt or SSH.
type fakeAgentService struct {
	lastDescription string
	destroyed       []string
	spawned         []string
}

func (s *fakeAgentService) CreateDomain(args *agent.CreateDomainArgs, reply *agent.CreateDomainReply) error {
	s.lastDescription = args.Description
	reply.Hostname = "10.0.0.5"
	return nil
}

func (s *fakeAgentService) DestroyDomain(args *agent.DestroyDomainArgs, reply *agent.DestroyDomainReply) error {
	s.destroyed = append(s.destroyed, args.NodeName)
	return nil
}

func (s *fakeAgentService) SpawnSlurmDaemon(args *agent.SpawnSlurmDaemonArgs, reply *agent.SpawnSlurmDaemonReply) error {
	s.spawned = append(s.spawned, args.NodeName)
	return nil
}

func startFakeAgent(t *testing.T, svc *fakeAgentService) string {
	t.Helper()
	server := rpc.NewServer()
	if err := server.RegisterName("Service", svc); err != nil {
		t.Fatalf("register service: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go server.ServeConn(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func newTestPool(t *testing.T, addr string) *rpcpool.Pool {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	pool, err := rpcpool.New([]string{"tcp:host=" + host + ":port=" + port})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool
}

func writeTemplate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "domain.xml")
	if err := os.WriteFile(path, []byte(sampleTemplate), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	return path
}

func TestGetNodes_CreatesOneDomainPerNode(t *testing.T) {
	vlog.Init(vlog.Config{})

	svc := &fakeAgentService{}
	addr := startFakeAgent(t, svc)
	pool := newTestPool(t, addr)

	templatePath := writeTemplate(t)
	schedulerConfig := filepath.Join(t.TempDir(), "slurm.conf")
	if err := os.WriteFile(schedulerConfig, []byte("# empty"), 0o644); err != nil {
		t.Fatalf("write scheduler config: %v", err)
	}

	p, err := New(pool, templatePath, schedulerConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := cluster.NewNameIterator("abc1234", 3)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	nodes, err := p.GetNodes(ctx, 3, names)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	for _, n := range nodes {
		if n.Running() {
			t.Fatalf("node %s should start WAITING", n.Name())
		}
		if got := n.RenderConfigLine(); got == "" {
			t.Fatalf("expected non-empty config line for %s", n.Name())
		}
	}

	if svc.lastDescription == sampleTemplate {
		t.Fatal("expected {nodeName} placeholder to be substituted")
	}
}

func TestVirtualNode_SpawnAndRelease(t *testing.T) {
	vlog.Init(vlog.Config{})

	svc := &fakeAgentService{}
	addr := startFakeAgent(t, svc)
	pool := newTestPool(t, addr)

	schedulerConfig := filepath.Join(t.TempDir(), "slurm.conf")
	if err := os.WriteFile(schedulerConfig, []byte("# fragment"), 0o644); err != nil {
		t.Fatalf("write scheduler config: %v", err)
	}

	n := newVirtualNode("nd-abc1234-0", "10.0.0.5", pool, schedulerConfig, vlog.Named("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := n.Spawn(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !n.Running() {
		t.Fatal("expected node to be running after spawn")
	}
	if len(svc.spawned) != 1 || svc.spawned[0] != "nd-abc1234-0" {
		t.Fatalf("expected SpawnSlurmDaemon called once for nd-abc1234-0, got %v", svc.spawned)
	}

	if err := n.Release(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Running() {
		t.Fatal("expected node to not be running after release")
	}
	if len(svc.destroyed) != 1 || svc.destroyed[0] != "nd-abc1234-0" {
		t.Fatalf("expected DestroyDomain called once for nd-abc1234-0, got %v", svc.destroyed)
	}

	// Release is idempotent once stopped.
	if err := n.Release(ctx); err != nil {
		t.Fatalf("unexpected error on repeat release: %v", err)
	}
	if len(svc.destroyed) != 1 {
		t.Fatalf("expected no additional DestroyDomain call, got %v", svc.destroyed)
	}
}
