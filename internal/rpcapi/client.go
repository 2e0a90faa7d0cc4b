package rpcapi

import (
	"fmt"
	"net/rpc"

	"github.com/vurm-project/vurm/internal/rpcpool"
	"github.com/vurm-project/vurm/internal/vurmerr"
)

// RemoteError wraps a vurmerr.Wire reported by the server, distinguishing
// a request the server rejected (exit code 2 at the CLI) from a transport
// or usage error (exit code 1). The message preserves the wire's tag,
// since the CLI only displays it, never type-switches on it.
type RemoteError struct {
	msg string
}

func (e *RemoteError) Error() string { return e.msg }

// A wire tagged "Internal" (an error the server did not mark remotable) is
// returned as a plain error instead, so the CLI exits 1 for it.
func remoteError(w *vurmerr.Wire) error {
	err := vurmerr.DecodeWithMessage(w)
	if w.Tag == "Internal" {
		return err
	}
	return &RemoteError{msg: err.Error()}
}

// Client is a single, non-reconnecting net/rpc connection to a running
// controller, used by the allocate/release CLI commands. Unlike
// internal/rpcpool, which keeps a long-lived pool of agent connections
// alive for the controller's own lifetime, a CLI invocation makes exactly
// one call and exits, so a bare *rpc.Client is the right tool here.
type Client struct {
	conn *rpc.Client
}

// Dial connects to a controller listening at the given `tcp:host=...:port=...`
// endpoint descriptor.
func Dial(endpoint string) (*Client, error) {
	addr, err := rpcpool.DialAddr(endpoint)
	if err != nil {
		return nil, err
	}
	conn, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial controller at %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Allocate requests a new virtual cluster of size nodes, with an optional
// floor of minSize, and returns its assigned name.
func (c *Client) Allocate(size int, minSize *int) (string, error) {
	args := &AllocateArgs{Size: size, MinSize: minSize}
	reply := &AllocateReply{}
	if err := c.conn.Call("Service.Allocate", args, reply); err != nil {
		return "", fmt.Errorf("allocate RPC: %w", err)
	}
	if reply.Err != nil {
		return "", remoteError(reply.Err)
	}
	return reply.ClusterName, nil
}

// Release tears down the named virtual cluster.
func (c *Client) Release(clusterName string) error {
	args := &ReleaseArgs{ClusterName: clusterName}
	reply := &ReleaseReply{}
	if err := c.conn.Call("Service.Release", args, reply); err != nil {
		return fmt.Errorf("release RPC: %w", err)
	}
	if reply.Err != nil {
		return remoteError(reply.Err)
	}
	return nil
}

// ReleaseAll tears down every registered virtual cluster.
func (c *Client) ReleaseAll() error {
	reply := &ReleaseAllReply{}
	if err := c.conn.Call("Service.ReleaseAll", &ReleaseAllArgs{}, reply); err != nil {
		return fmt.Errorf("release-all RPC: %w", err)
	}
	if reply.Err != nil {
		return remoteError(reply.Err)
	}
	return nil
}
