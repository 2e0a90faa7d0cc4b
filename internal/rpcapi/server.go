// Package rpcapi implements the client-facing RPC surface (C8): allocate,
// release, and release-all, dispatched straight through to
// internal/controller. Every method has the func(args, reply) error
// net/rpc shape and never returns a Go error directly (net/rpc's gob
// encoding loses type information across the wire); instead each flattens
// a failure into reply.Err via vurmerr.Encode.
package rpcapi

import (
	"context"
	"time"

	"github.com/vurm-project/vurm/internal/controller"
	"github.com/vurm-project/vurm/internal/vlog"
	"github.com/vurm-project/vurm/internal/vurmerr"
)

// AllocateArgs requests a virtual cluster of Size nodes, with an optional
// floor of MinSize (Size itself when nil).
type AllocateArgs struct {
	Size    int
	MinSize *int
}

// AllocateReply carries the newly allocated cluster's name, or an error.
type AllocateReply struct {
	ClusterName string
	Err         *vurmerr.Wire
}

// ReleaseArgs names the virtual cluster to tear down.
type ReleaseArgs struct {
	ClusterName string
}

// ReleaseReply is empty on success.
type ReleaseReply struct {
	Err *vurmerr.Wire
}

// ReleaseAllArgs takes no parameters.
type ReleaseAllArgs struct{}

// ReleaseAllReply is empty on success.
type ReleaseAllReply struct {
	Err *vurmerr.Wire
}

// Service is registered with net/rpc under its default type name,
// "Service" (the same convention the remote-virt agent uses), so client
// stubs call "Service.Allocate", "Service.Release", "Service.ReleaseAll".
type Service struct {
	controller *controller.Controller
	timeout    time.Duration
	debug      bool
	log        vlog.Logger
}

// NewService returns a Service dispatching to c. timeout bounds every RPC;
// debug controls whether internal error detail crosses the wire.
func NewService(c *controller.Controller, timeout time.Duration, debug bool) *Service {
	return &Service{
		controller: c,
		timeout:    timeout,
		debug:      debug,
		log:        vlog.Named("rpcapi"),
	}
}

// Allocate handles the allocate client RPC.
func (s *Service) Allocate(args *AllocateArgs, reply *AllocateReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	name, err := s.controller.CreateVirtualCluster(ctx, args.Size, args.MinSize)
	if err != nil {
		s.log.Error(err, "allocate failed", "size", args.Size)
		reply.Err = vurmerr.Encode(err, s.debug)
		return nil
	}
	reply.ClusterName = name
	return nil
}

// Release handles the release-one client RPC.
func (s *Service) Release(args *ReleaseArgs, reply *ReleaseReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.controller.DestroyVirtualCluster(ctx, args.ClusterName); err != nil {
		s.log.Error(err, "release failed", "cluster", args.ClusterName)
		reply.Err = vurmerr.Encode(err, s.debug)
	}
	return nil
}

// ReleaseAll handles the release-all client RPC, tearing down every
// registered virtual cluster.
func (s *Service) ReleaseAll(_ *ReleaseAllArgs, reply *ReleaseAllReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.controller.DestroyAllVirtualClusters(ctx); err != nil {
		s.log.Error(err, "release-all failed")
		reply.Err = vurmerr.Encode(err, s.debug)
	}
	return nil
}
