package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vurm-project/vurm/internal/cluster"
	"github.com/vurm-project/vurm/internal/config"
	"github.com/vurm-project/vurm/internal/controller"
	"github.com/vurm-project/vurm/internal/metrics"
	"github.com/vurm-project/vurm/internal/provisioner"
	"github.com/vurm-project/vurm/internal/provisioners/localmulti"
	remotevirtprovisioner "github.com/vurm-project/vurm/internal/remotevirt/provisioner"
	"github.com/vurm-project/vurm/internal/rpcapi"
	"github.com/vurm-project/vurm/internal/rpcpool"
	"github.com/vurm-project/vurm/internal/vlog"
)

// Controller runs the vurmctld daemon until ctx is canceled or the process
// receives SIGINT/SIGTERM.
func Controller(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	vlog.Init(vlog.Config{Debug: cfg.Vurm.Debug})
	log := vlog.Named("vurmctl-controller")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provisioners, pools, err := buildProvisioners(cfg)
	if err != nil {
		return err
	}
	for _, pool := range pools {
		pool.Start()
		defer pool.Stop()
	}

	ctrl := controller.New(controller.Config{
		Provisioners:        provisioners,
		Naming:              cluster.NewNamingAuthority(cluster.DefaultPrefix),
		SchedulerConfigPath: cfg.Vurmctld.SlurmConfig,
		ReconfigureCmd:      cfg.Vurmctld.Reconfigure,
		Metrics:             metrics.NewRecorder(cfg.Vurm.Metrics != ""),
	})

	svc := rpcapi.NewService(ctrl, cfg.Vurmctld.Timeout, cfg.Vurm.Debug)
	server := rpc.NewServer()
	if err := server.RegisterName("Service", svc); err != nil {
		return fmt.Errorf("register rpc service: %w", err)
	}

	addr, err := rpcpool.DialAddr(cfg.Vurmctld.Endpoint)
	if err != nil {
		return fmt.Errorf("parse vurmctld endpoint: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer ln.Close()

	if cfg.Vurm.Metrics != "" {
		if err := serveMetrics(ctx, cfg.Vurm.Metrics, log); err != nil {
			return err
		}
	}

	log.Info("vurmctld listening", "endpoint", cfg.Vurmctld.Endpoint)

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

// buildProvisioners constructs the configured provisioner backends in a
// fixed order (local-multi, then remote-virt), matching the order the
// controller draws nodes from them. It returns the rpcpool.Pool instances
// so the caller can Start/Stop them around the daemon's lifetime.
func buildProvisioners(cfg *config.Config) ([]provisioner.Provisioner, []*rpcpool.Pool, error) {
	var provisioners []provisioner.Provisioner
	var pools []*rpcpool.Pool

	if cfg.MultiLocal.Slurmd != "" {
		ports := localmulti.NewPortAllocator(cfg.MultiLocal.BasePort)
		provisioners = append(provisioners, localmulti.New(cfg.MultiLocal.Slurmd, ports, "localhost"))
	}

	if len(cfg.Libvirt.Nodes) > 0 {
		pool, err := rpcpool.New(cfg.Libvirt.Nodes)
		if err != nil {
			return nil, nil, fmt.Errorf("build remote-virt pool: %w", err)
		}
		rv, err := remotevirtprovisioner.New(pool, cfg.Libvirt.DomainXML, cfg.Vurmctld.SlurmConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("build remote-virt provisioner: %w", err)
		}
		provisioners = append(provisioners, rv)
		pools = append(pools, pool)
	}

	if len(provisioners) == 0 {
		return nil, nil, fmt.Errorf("no provisioners configured: set [multilocal] slurmd or [libvirt] nodes")
	}

	return provisioners, pools, nil
}

// serveMetrics starts a Prometheus /metrics endpoint in the background,
// shut down when ctx is canceled.
func serveMetrics(ctx context.Context, addr string, log vlog.Logger) error {
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error(err, "metrics server stopped")
		}
	}()

	return nil
}
