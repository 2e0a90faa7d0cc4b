package agent

import (
	"context"
	"time"

	"github.com/vurm-project/vurm/internal/vurmerr"
)

// CreateDomainArgs is the wire form of CreateDomain's argument.
type CreateDomainArgs struct {
	Description string
}

// CreateDomainReply is the wire form of CreateDomain's response. Err is
// non-nil only when the call failed; net/rpc's own error string is not
// used for domain errors since it can't carry a type tag.
type CreateDomainReply struct {
	Hostname string
	Err      *vurmerr.Wire
}

// DestroyDomainArgs is the wire form of DestroyDomain's argument.
type DestroyDomainArgs struct {
	NodeName string
}

// DestroyDomainReply is the wire form of DestroyDomain's response.
type DestroyDomainReply struct {
	Err *vurmerr.Wire
}

// SpawnSlurmDaemonArgs is the wire form of SpawnSlurmDaemon's argument.
type SpawnSlurmDaemonArgs struct {
	NodeName    string
	SlurmConfig []byte
}

// SpawnSlurmDaemonReply is the wire form of SpawnSlurmDaemon's response.
type SpawnSlurmDaemonReply struct {
	Err *vurmerr.Wire
}

// requestTimeout bounds every RPC's underlying work; the source leaves
// per-call deadlines unspecified (§5), so this is the resolved default for
// a concurrency/resource open question.
const requestTimeout = 5 * time.Minute

// Service exposes a DomainManager over net/rpc, matching the three
// commands in the component design's §4.5. Method names and
// Args/Reply-pointer shapes follow net/rpc's registration convention
// (exported type, two pointer args, error return).
type Service struct {
	manager           *DomainManager
	remoteConfigPath  string
	launchCmdTemplate string
	debug             bool
}

// NewService returns a Service wrapping manager. remoteConfigPath and
// launchCmdTemplate are the agent's [vurmd-libvirt] slurmconfig/slurmd
// settings, since SpawnSlurmDaemon's wire arguments carry only the node
// name and config bytes (the destination path and launch command are
// local agent configuration, not client-supplied).
func NewService(manager *DomainManager, remoteConfigPath, launchCmdTemplate string, debug bool) *Service {
	return &Service{
		manager:           manager,
		remoteConfigPath:  remoteConfigPath,
		launchCmdTemplate: launchCmdTemplate,
		debug:             debug,
	}
}

// CreateDomain is the net/rpc-registered handler for the CreateDomain RPC.
func (s *Service) CreateDomain(args *CreateDomainArgs, reply *CreateDomainReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	hostname, err := s.manager.CreateDomain(ctx, args.Description)
	if err != nil {
		reply.Err = vurmerr.Encode(err, s.debug)
		return nil
	}

	reply.Hostname = hostname
	return nil
}

// DestroyDomain is the net/rpc-registered handler for the DestroyDomain
// RPC.
func (s *Service) DestroyDomain(args *DestroyDomainArgs, reply *DestroyDomainReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := s.manager.DestroyDomain(ctx, args.NodeName); err != nil {
		reply.Err = vurmerr.Encode(err, s.debug)
	}
	return nil
}

// SpawnSlurmDaemon is the net/rpc-registered handler for the
// SpawnSlurmDaemon RPC.
func (s *Service) SpawnSlurmDaemon(args *SpawnSlurmDaemonArgs, reply *SpawnSlurmDaemonReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	err := s.manager.SpawnSlurmDaemon(ctx, args.NodeName, args.SlurmConfig, s.remoteConfigPath, s.launchCmdTemplate)
	if err != nil {
		reply.Err = vurmerr.Encode(err, s.debug)
	}
	return nil
}
