package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// LoadFile reads and parses the configuration from an INI file at path,
// decodes each recognized section into Config, and applies defaults and
// derived fields via Validate.
func LoadFile(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	var cfg Config

	if err := f.Section("vurm").MapTo(&cfg.Vurm); err != nil {
		return nil, fmt.Errorf("failed to decode [vurm] section: %w", err)
	}
	if err := f.Section("vurmctld").MapTo(&cfg.Vurmctld); err != nil {
		return nil, fmt.Errorf("failed to decode [vurmctld] section: %w", err)
	}
	if err := f.Section("vurm-client").MapTo(&cfg.VurmClient); err != nil {
		return nil, fmt.Errorf("failed to decode [vurm-client] section: %w", err)
	}
	if err := f.Section("multilocal").MapTo(&cfg.MultiLocal); err != nil {
		return nil, fmt.Errorf("failed to decode [multilocal] section: %w", err)
	}
	if err := f.Section("libvirt").MapTo(&cfg.Libvirt); err != nil {
		return nil, fmt.Errorf("failed to decode [libvirt] section: %w", err)
	}
	if err := f.Section("vurmd-libvirt").MapTo(&cfg.VurmdLibvirt); err != nil {
		return nil, fmt.Errorf("failed to decode [vurmd-libvirt] section: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fills in defaults, parses derived fields (durations, newline
// lists), and rejects values that cannot be made sense of. It is exported
// so tests can build a Config in memory and validate it without going
// through a file.
func (c *Config) Validate() error {
	if c.Vurmctld.Endpoint == "" {
		c.Vurmctld.Endpoint = DefaultVurmctldAddr
	}

	timeout := DefaultTimeout
	if c.Vurmctld.TimeoutRaw != "" {
		d, err := time.ParseDuration(c.Vurmctld.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("invalid vurmctld.timeout %q: %w", c.Vurmctld.TimeoutRaw, err)
		}
		timeout = d
	}
	c.Vurmctld.Timeout = timeout

	if c.MultiLocal.BasePort == 0 {
		c.MultiLocal.BasePort = DefaultBasePort
	}

	if c.VurmdLibvirt.SSHPort == 0 {
		c.VurmdLibvirt.SSHPort = DefaultSSHPort
	}

	c.Libvirt.Nodes = splitNonEmptyLines(c.Libvirt.NodesRaw)

	return nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
