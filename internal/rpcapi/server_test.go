package rpcapi

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vurm-project/vurm/internal/cluster"
	"github.com/vurm-project/vurm/internal/controller"
	"github.com/vurm-project/vurm/internal/metrics"
	"github.com/vurm-project/vurm/internal/node"
	"github.com/vurm-project/vurm/internal/provisioner"
	"github.com/vurm-project/vurm/internal/vlog"
)

// fakeNode is a minimal node.Node test double, same shape as the one in
// internal/controller's own tests.
type fakeNode struct {
	name    string
	running bool
}

func (n *fakeNode) Spawn(context.Context) error   { n.running = true; return nil }
func (n *fakeNode) Release(context.Context) error { n.running = false; return nil }
func (n *fakeNode) RenderConfigLine() string      { return node.ConfigLine(n.name, "localhost", 6818) }
func (n *fakeNode) Running() bool                 { return n.running }
func (n *fakeNode) Name() string                  { return n.name }

// fakeProvisioner hands out fakeNodes up to a configured ceiling.
type fakeProvisioner struct {
	ceiling  int
	acquired int
}

func (p *fakeProvisioner) GetNodes(_ context.Context, count int, names *cluster.NameIterator) ([]node.Node, error) {
	available := p.ceiling - p.acquired
	if count < available {
		available = count
	}
	if available < 0 {
		available = 0
	}
	nodes := make([]node.Node, available)
	for i := 0; i < available; i++ {
		nodes[i] = &fakeNode{name: names.Next()}
	}
	p.acquired += available
	return nodes, nil
}

// startTestServer wires a real Controller behind a real net/rpc server and
// returns a connected Client.
func startTestServer(t *testing.T, ceiling int) *Client {
	t.Helper()
	vlog.Init(vlog.Config{})

	configPath := filepath.Join(t.TempDir(), "slurm.conf")
	if err := os.WriteFile(configPath, []byte("# base config\n"), 0o644); err != nil {
		t.Fatalf("write base config: %v", err)
	}

	c := controller.New(controller.Config{
		Provisioners:        []provisioner.Provisioner{&fakeProvisioner{ceiling: ceiling}},
		Naming:              cluster.NewNamingAuthority(cluster.DefaultPrefix),
		SchedulerConfigPath: configPath,
		Metrics:             metrics.NewRecorder(false),
	})

	svc := NewService(c, 5*time.Second, false)

	server := rpc.NewServer()
	if err := server.RegisterName("Service", svc); err != nil {
		t.Fatalf("register service: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go server.ServeConn(conn)
		}
	}()

	conn, err := rpc.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &Client{conn: conn}
}

func TestService_AllocateAndRelease(t *testing.T) {
	client := startTestServer(t, 10)

	name, err := client.Allocate(3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name == "" {
		t.Fatal("expected a non-empty cluster name")
	}

	if err := client.Release(name); err != nil {
		t.Fatalf("unexpected error releasing: %v", err)
	}
}

func TestService_Allocate_InsufficientResourcesSurfacesTypedError(t *testing.T) {
	client := startTestServer(t, 2)

	min := 5
	_, err := client.Allocate(5, &min)
	if err == nil {
		t.Fatal("expected an error")
	}
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected a *RemoteError so the CLI can pick exit code 2, got %T: %v", err, err)
	}
}

func TestService_Release_UnknownClusterSurfacesError(t *testing.T) {
	client := startTestServer(t, 10)

	if err := client.Release("vc-doesnotexist"); err == nil {
		t.Fatal("expected an error releasing an unknown cluster")
	}
}

func TestService_ReleaseAll_TearsDownEveryCluster(t *testing.T) {
	client := startTestServer(t, 20)

	for i := 0; i < 3; i++ {
		if _, err := client.Allocate(2, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := client.ReleaseAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
