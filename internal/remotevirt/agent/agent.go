package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vurm-project/vurm/internal/ssh"
	"github.com/vurm-project/vurm/internal/vlog"
	"github.com/vurm-project/vurm/internal/vurmerr"
)

// Config bundles a DomainManager's [vurmd-libvirt] settings.
type Config struct {
	HypervisorURI string
	KeyPath       string
	CloneDir      string
	CloneCmd      string // template with {source}, {destination}
	Username      string
	SSHPort       int
}

// DomainManager runs on a hypervisor host, creating and destroying guest
// domains and pushing scheduler config to them over SSH. The address
// registry (nodeName -> guest IP) is a mutex-guarded map since the RPC
// server dispatches concurrently across goroutines.
type DomainManager struct {
	cfg Config
	log vlog.Logger

	mu        sync.Mutex
	addresses map[string]string
}

// New returns a DomainManager for cfg.
func New(cfg Config) *DomainManager {
	return &DomainManager{
		cfg:       cfg,
		log:       vlog.Named("remotevirt-agent"),
		addresses: make(map[string]string),
	}
}

// CreateDomain runs the full clone/boot/IP-exchange pipeline described in
// the component design and returns the guest's address.
func (m *DomainManager) CreateDomain(ctx context.Context, descriptionXML string) (string, error) {
	m.log.Info("new virtual domain creation request received")

	desc, err := parseDomainDescription(descriptionXML)
	if err != nil {
		return "", err
	}

	nodeName, err := desc.Name()
	if err != nil {
		return "", err
	}

	original, err := desc.RootImagePath()
	if err != nil {
		return "", err
	}

	clonePath := filepath.Join(m.cfg.CloneDir, nodeName+".qcow2")
	if err := m.cloneImage(ctx, nodeName, original, clonePath); err != nil {
		return "", err
	}

	if err := desc.SetRootImagePath(clonePath); err != nil {
		return "", err
	}

	key, err := os.ReadFile(m.cfg.KeyPath + ".pub")
	if err != nil {
		return "", fmt.Errorf("read agent public key: %w", err)
	}

	port, addressCh, err := startIPExchange(ctx, key)
	if err != nil {
		return "", fmt.Errorf("start ip exchange: %w", err)
	}

	if err := desc.AddSerialToTCPDevice("127.0.0.1", port, "connect"); err != nil {
		return "", err
	}

	xml, err := desc.String()
	if err != nil {
		return "", err
	}

	if err := m.createDomainBlocking(ctx, xml); err != nil {
		return "", err
	}

	m.log.Info("domain created, waiting for guest OS to come up", "node", nodeName)

	var address string
	select {
	case address = <-addressCh:
		if address == "" {
			return "", fmt.Errorf("ip exchange for %s closed without an address", nodeName)
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}

	m.log.Info("got guest address", "node", nodeName, "address", address)

	m.mu.Lock()
	m.addresses[nodeName] = address
	m.mu.Unlock()

	return address, nil
}

// createDomainBlocking runs the hypervisor's createLinux call on a worker
// goroutine, since go-libvirt's RPC round trip blocks, and waits for it.
func (m *DomainManager) createDomainBlocking(ctx context.Context, xml string) error {
	type outcome struct{ err error }
	done := make(chan outcome, 1)

	go func() {
		conn, err := dialHypervisor(m.cfg.HypervisorURI)
		if err != nil {
			done <- outcome{err}
			return
		}
		defer conn.Disconnect()

		done <- outcome{createDomain(conn, xml)}
	}()

	select {
	case o := <-done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cloneImage runs the configured clone command, templated with {source}
// and {destination}. A failure becomes a vurmerr.CloneFailed for nodeName.
func (m *DomainManager) cloneImage(ctx context.Context, nodeName, source, destination string) error {
	command := renderCloneCmd(m.cfg.CloneCmd, source, destination)

	m.log.Info("creating new copy-on-write image", "source", source, "destination", destination)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		m.log.Error(err, "image clone failed", "stdout", stdout.String(), "stderr", stderr.String())
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &vurmerr.CloneFailed{NodeName: nodeName, ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}
	}

	return nil
}

// DestroyDomain removes nodeName from the address registry, best-effort
// destroys its running domain, and removes its clone image from disk.
func (m *DomainManager) DestroyDomain(ctx context.Context, nodeName string) error {
	m.log.Info("virtual domain destruction request received", "node", nodeName)

	m.mu.Lock()
	delete(m.addresses, nodeName)
	m.mu.Unlock()

	destroyed, err := m.destroyDomainBlocking(ctx, nodeName)
	if err != nil {
		return err
	}
	if destroyed {
		m.log.Debug("domain destroyed", "node", nodeName)
	} else {
		m.log.Debug("domain not running, moving on", "node", nodeName)
	}

	clonePath := filepath.Join(m.cfg.CloneDir, nodeName+".qcow2")
	if err := os.Remove(clonePath); err != nil && !os.IsNotExist(err) {
		m.log.Warn("failed to remove clone image", "path", clonePath, "error", err.Error())
	}

	return nil
}

func (m *DomainManager) destroyDomainBlocking(ctx context.Context, nodeName string) (bool, error) {
	type outcome struct {
		destroyed bool
		err       error
	}
	done := make(chan outcome, 1)

	go func() {
		conn, err := dialHypervisor(m.cfg.HypervisorURI)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		defer conn.Disconnect()

		destroyed, err := destroyDomainByName(conn, nodeName)
		done <- outcome{destroyed: destroyed, err: err}
	}()

	select {
	case o := <-done:
		return o.destroyed, o.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// SpawnSlurmDaemon pushes slurmConfig to the remote scheduler config path
// and runs the worker-daemon launch command over SSH, for the guest
// already recorded under nodeName in the address registry.
func (m *DomainManager) SpawnSlurmDaemon(ctx context.Context, nodeName string, slurmConfig []byte, remoteConfigPath, launchCmdTemplate string) error {
	m.mu.Lock()
	address, ok := m.addresses[nodeName]
	m.mu.Unlock()
	if !ok {
		return &vurmerr.UnknownDomain{NodeName: nodeName}
	}

	key, err := os.ReadFile(m.cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}

	m.log.Debug("connecting via ssh", "node", nodeName, "address", address, "user", m.cfg.Username)

	client := ssh.NewClient(address, m.cfg.SSHPort, m.cfg.Username, key)
	defer client.Close()

	parentDir := filepath.Dir(remoteConfigPath)
	if _, err := client.Execute(ctx, fmt.Sprintf("mkdir -p %s", parentDir)); err != nil {
		return fatalRemoteErr(err)
	}

	if err := client.UploadBytes(ctx, remoteConfigPath, slurmConfig); err != nil {
		return fatalRemoteErr(err)
	}

	cmd := renderLaunchCmd(launchCmdTemplate, nodeName)
	if _, err := client.Execute(ctx, cmd); err != nil {
		return fatalRemoteErr(err)
	}

	return nil
}

func fatalRemoteErr(err error) error {
	return fmt.Errorf("remote command failed: %w", err)
}

func renderCloneCmd(template, source, destination string) string {
	r := strings.NewReplacer("{source}", source, "{destination}", destination)
	return r.Replace(template)
}

func renderLaunchCmd(template, nodeName string) string {
	return strings.ReplaceAll(template, "{nodeName}", nodeName)
}
