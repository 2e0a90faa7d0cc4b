package config

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"gopkg.in/ini.v1"
)

// WizardResult holds the operator's answers from the `vurmctl init`
// wizard: a flat struct filled in by a huh.Form, then converted to the
// real Config.
type WizardResult struct {
	VurmctldEndpoint string
	SlurmConfigPath  string
	ReconfigureCmd   string
	UseLocalMulti    bool
	MultiLocalSlurmd string
	UseRemoteVirt    bool
	Hypervisor       string
	LibvirtKeyPath   string
	Debug            bool
}

// RunWizard runs the interactive configuration wizard and returns the
// operator's answers.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		VurmctldEndpoint: DefaultVurmctldAddr,
		SlurmConfigPath:  "/etc/slurm/slurm.conf",
		ReconfigureCmd:   "scontrol reconfigure",
		UseLocalMulti:    true,
		MultiLocalSlurmd: "slurmd -N {nodeName} -Z",
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Controller endpoint").
				Description("Where vurmctld listens and allocate/release clients connect").
				Value(&result.VurmctldEndpoint),

			huh.NewInput().
				Title("Scheduler config file").
				Description("The slurm.conf the controller splices virtual partitions into").
				Value(&result.SlurmConfigPath),

			huh.NewInput().
				Title("Reconfigure command").
				Description("Run after every config edit to make the scheduler pick it up").
				Value(&result.ReconfigureCmd),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the local-multi provisioner?").
				Description("Spawn worker daemons as local child processes (good for testing)").
				Value(&result.UseLocalMulti),

			huh.NewInput().
				Title("local-multi worker launch command").
				Description("Template with {nodeName}, {hostname}, {port}").
				Value(&result.MultiLocalSlurmd),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the remote-virt provisioner?").
				Description("Boot worker nodes as libvirt domains on remote hypervisors").
				Value(&result.UseRemoteVirt),

			huh.NewInput().
				Title("Hypervisor URI").
				Description("e.g. qemu+tcp://hv1.internal/system").
				Value(&result.Hypervisor),

			huh.NewInput().
				Title("Agent key path").
				Description("Private key path; its .pub sibling is sent during IP exchange").
				Value(&result.LibvirtKeyPath),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable debug logging and unsafe RPC tracebacks?").
				Value(&result.Debug),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}

	return result, nil
}

// ToConfig converts the wizard's answers into a Config ready for
// Validate + WriteINI.
func (r *WizardResult) ToConfig() *Config {
	cfg := &Config{
		Vurm: VurmSection{
			Debug: r.Debug,
		},
		Vurmctld: VurmctldSection{
			Endpoint:    r.VurmctldEndpoint,
			SlurmConfig: r.SlurmConfigPath,
			Reconfigure: r.ReconfigureCmd,
		},
		VurmClient: VurmClientSection{
			Endpoint: r.VurmctldEndpoint,
		},
	}
	if r.UseLocalMulti {
		cfg.MultiLocal = MultiLocalSection{
			BasePort: DefaultBasePort,
			Slurmd:   r.MultiLocalSlurmd,
		}
	}
	if r.UseRemoteVirt {
		cfg.VurmdLibvirt = VurmdLibvirtSection{
			Hypervisor: r.Hypervisor,
			Key:        r.LibvirtKeyPath,
			SSHPort:    DefaultSSHPort,
		}
	}
	return cfg
}

// WriteINI renders cfg as an INI file at path, in the same section/key
// layout LoadFile reads back, using gopkg.in/ini.v1's ReflectFrom.
func WriteINI(cfg *Config, path string) error {
	f := ini.Empty()

	if err := f.Section("vurm").ReflectFrom(&cfg.Vurm); err != nil {
		return fmt.Errorf("render [vurm] section: %w", err)
	}
	if err := f.Section("vurmctld").ReflectFrom(&cfg.Vurmctld); err != nil {
		return fmt.Errorf("render [vurmctld] section: %w", err)
	}
	if err := f.Section("vurm-client").ReflectFrom(&cfg.VurmClient); err != nil {
		return fmt.Errorf("render [vurm-client] section: %w", err)
	}
	if cfg.MultiLocal.Slurmd != "" {
		if err := f.Section("multilocal").ReflectFrom(&cfg.MultiLocal); err != nil {
			return fmt.Errorf("render [multilocal] section: %w", err)
		}
	}
	if cfg.VurmdLibvirt.Hypervisor != "" {
		if err := f.Section("vurmd-libvirt").ReflectFrom(&cfg.VurmdLibvirt); err != nil {
			return fmt.Errorf("render [vurmd-libvirt] section: %w", err)
		}
	}

	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("set config file permissions: %w", err)
	}

	return nil
}
