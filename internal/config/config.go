// Package config loads and validates VURM's INI configuration file.
//
// LoadFile reads the file, unmarshals each section via gopkg.in/ini.v1,
// then fills in defaults for any key left unset.
package config

import "time"

// Config is the fully parsed, defaulted configuration shared by every VURM
// binary. Not every binary uses every section: the controller daemon reads
// Vurm/Vurmctld/MultiLocal/Libvirt, the remote-virt agent reads
// Vurm/VurmdLibvirt, the allocate/release clients read Vurm/VurmClient.
type Config struct {
	Vurm         VurmSection
	Vurmctld     VurmctldSection
	VurmClient   VurmClientSection
	MultiLocal   MultiLocalSection
	Libvirt      LibvirtSection
	VurmdLibvirt VurmdLibvirtSection
}

// VurmSection is the `[vurm]` section.
type VurmSection struct {
	Debug   bool   `ini:"debug"`
	Metrics string `ini:"metrics"`
}

// VurmctldSection is the `[vurmctld]` section.
type VurmctldSection struct {
	Endpoint    string `ini:"endpoint"`
	SlurmConfig string `ini:"slurmconfig"`
	Reconfigure string `ini:"reconfigure"`
	TimeoutRaw  string `ini:"timeout"`

	// Timeout is TimeoutRaw parsed to a duration by Validate; zero until then.
	Timeout time.Duration `ini:"-"`
}

// VurmClientSection is the `[vurm-client]` section.
type VurmClientSection struct {
	Endpoint string `ini:"endpoint"`
}

// MultiLocalSection is the `[multilocal]` section.
type MultiLocalSection struct {
	BasePort int    `ini:"baseport"`
	Slurmd   string `ini:"slurmd"`
}

// LibvirtSection is the `[libvirt]` section (remote-virt provisioner,
// controller side).
type LibvirtSection struct {
	NodesRaw  string `ini:"nodes"`
	DomainXML string `ini:"domainXML"`

	// Nodes is NodesRaw split on newlines by Validate.
	Nodes []string `ini:"-"`
}

// VurmdLibvirtSection is the `[vurmd-libvirt]` section (remote-virt agent).
type VurmdLibvirtSection struct {
	Endpoint    string `ini:"endpoint"`
	Hypervisor  string `ini:"hypervisor"`
	Key         string `ini:"key"`
	CloneDir    string `ini:"clonedir"`
	CloneBin    string `ini:"clonebin"`
	Username    string `ini:"username"`
	SSHPort     int    `ini:"sshport"`
	SlurmConfig string `ini:"slurmconfig"`
	Slurmd      string `ini:"slurmd"`
}

// Defaults applied by Validate when a key is absent from the file.
const (
	DefaultTimeout      = 5 * time.Minute
	DefaultSSHPort      = 22
	DefaultBasePort     = 17000
	DefaultVurmctldAddr = "tcp:host=localhost:port=8789"
)
