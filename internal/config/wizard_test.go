package config

import (
	"path/filepath"
	"testing"
)

func TestWizardResult_ToConfig_LocalMultiOnly(t *testing.T) {
	r := &WizardResult{
		VurmctldEndpoint: "tcp:host=localhost:port=8789",
		SlurmConfigPath:  "/etc/slurm/slurm.conf",
		ReconfigureCmd:   "scontrol reconfigure",
		UseLocalMulti:    true,
		MultiLocalSlurmd: "slurmd -N {nodeName}",
	}

	cfg := r.ToConfig()

	if cfg.Vurmctld.Endpoint != r.VurmctldEndpoint {
		t.Fatalf("expected endpoint %q, got %q", r.VurmctldEndpoint, cfg.Vurmctld.Endpoint)
	}
	if cfg.MultiLocal.Slurmd != r.MultiLocalSlurmd {
		t.Fatalf("expected local-multi command carried through, got %q", cfg.MultiLocal.Slurmd)
	}
	if cfg.VurmdLibvirt.Hypervisor != "" {
		t.Fatalf("expected no remote-virt config when not selected, got %q", cfg.VurmdLibvirt.Hypervisor)
	}
}

func TestWizardResult_ToConfig_RemoteVirtOnly(t *testing.T) {
	r := &WizardResult{
		VurmctldEndpoint: "tcp:host=localhost:port=8789",
		UseRemoteVirt:    true,
		Hypervisor:       "qemu+tcp://hv1.internal/system",
		LibvirtKeyPath:   "/etc/vurm/agent.key",
	}

	cfg := r.ToConfig()

	if cfg.VurmdLibvirt.Hypervisor != r.Hypervisor {
		t.Fatalf("expected hypervisor carried through, got %q", cfg.VurmdLibvirt.Hypervisor)
	}
	if cfg.VurmdLibvirt.SSHPort != DefaultSSHPort {
		t.Fatalf("expected default ssh port, got %d", cfg.VurmdLibvirt.SSHPort)
	}
	if cfg.MultiLocal.Slurmd != "" {
		t.Fatalf("expected no local-multi config when not selected, got %q", cfg.MultiLocal.Slurmd)
	}
}

func TestWriteINI_RoundTripsThroughLoadFile(t *testing.T) {
	r := &WizardResult{
		VurmctldEndpoint: "tcp:host=localhost:port=8789",
		SlurmConfigPath:  "/etc/slurm/slurm.conf",
		ReconfigureCmd:   "scontrol reconfigure",
		UseLocalMulti:    true,
		MultiLocalSlurmd: "slurmd -N {nodeName}",
		Debug:            true,
	}
	cfg := r.ToConfig()

	path := filepath.Join(t.TempDir(), "vurm.ini")
	if err := WriteINI(cfg, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error reading back written config: %v", err)
	}
	if loaded.Vurm.Debug != true {
		t.Fatal("expected debug=true to round-trip")
	}
	if loaded.Vurmctld.Endpoint != r.VurmctldEndpoint {
		t.Fatalf("expected endpoint to round-trip, got %q", loaded.Vurmctld.Endpoint)
	}
	if loaded.MultiLocal.Slurmd != r.MultiLocalSlurmd {
		t.Fatalf("expected local-multi command to round-trip, got %q", loaded.MultiLocal.Slurmd)
	}
}
