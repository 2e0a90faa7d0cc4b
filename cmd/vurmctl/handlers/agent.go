package handlers

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"os/signal"
	"syscall"

	"github.com/vurm-project/vurm/internal/remotevirt/agent"
	"github.com/vurm-project/vurm/internal/rpcpool"
	"github.com/vurm-project/vurm/internal/vlog"
)

// Agent runs the remote-virt domain manager daemon (C5) until ctx is
// canceled or the process receives SIGINT/SIGTERM. One instance is
// expected per hypervisor host.
func Agent(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	vlog.Init(vlog.Config{Debug: cfg.Vurm.Debug})
	log := vlog.Named("vurmctl-agent")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := agent.New(agent.Config{
		HypervisorURI: cfg.VurmdLibvirt.Hypervisor,
		KeyPath:       cfg.VurmdLibvirt.Key,
		CloneDir:      cfg.VurmdLibvirt.CloneDir,
		CloneCmd:      cfg.VurmdLibvirt.CloneBin,
		Username:      cfg.VurmdLibvirt.Username,
		SSHPort:       cfg.VurmdLibvirt.SSHPort,
	})

	svc := agent.NewService(manager, cfg.VurmdLibvirt.SlurmConfig, cfg.VurmdLibvirt.Slurmd, cfg.Vurm.Debug)

	server := rpc.NewServer()
	if err := server.RegisterName("Service", svc); err != nil {
		return fmt.Errorf("register rpc service: %w", err)
	}

	addr, err := rpcpool.DialAddr(cfg.VurmdLibvirt.Endpoint)
	if err != nil {
		return fmt.Errorf("parse agent endpoint: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer ln.Close()

	log.Info("remote-virt agent listening", "endpoint", cfg.VurmdLibvirt.Endpoint, "hypervisor", cfg.VurmdLibvirt.Hypervisor)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		go server.ServeConn(conn)
	}
}
