// Package agent implements the domain manager (C5): the daemon that runs
// on a hypervisor host, cloning images, booting domains, exchanging IP and
// SSH key with the guest over a serial-to-TCP side channel, and pushing
// scheduler config + launching the worker daemon over SSH/SFTP.
package agent

import (
	"fmt"

	"github.com/beevik/etree"
)

// domainDescription wraps a libvirt domain XML document, exposing the
// narrow set of reads/writes CreateDomain needs: name, root disk image
// path, and serial-device injection.
type domainDescription struct {
	doc *etree.Document
}

// parseDomainDescription parses a domain description document.
func parseDomainDescription(xml string) (*domainDescription, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("parse domain description: %w", err)
	}
	return &domainDescription{doc: doc}, nil
}

// Name returns the domain's <name> element text.
func (d *domainDescription) Name() (string, error) {
	el := d.doc.FindElement("./domain/name")
	if el == nil {
		return "", fmt.Errorf("domain description missing <name>")
	}
	return el.Text(), nil
}

// RootImagePath returns the `file` attribute of the root disk's <source>
// element.
func (d *domainDescription) RootImagePath() (string, error) {
	el := d.doc.FindElement(`./domain/devices/disk[@device='disk']/source`)
	if el == nil {
		return "", fmt.Errorf("domain description missing root disk source")
	}
	path := el.SelectAttrValue("file", "")
	if path == "" {
		return "", fmt.Errorf("domain description root disk source missing file attribute")
	}
	return path, nil
}

// SetRootImagePath rewrites the root disk's <source file=...> attribute.
func (d *domainDescription) SetRootImagePath(path string) error {
	el := d.doc.FindElement(`./domain/devices/disk[@device='disk']/source`)
	if el == nil {
		return fmt.Errorf("domain description missing root disk source")
	}
	el.CreateAttr("file", path)
	return nil
}

// AddSerialToTCPDevice injects a <serial type="tcp"> device for host:port
// in the given mode ("connect" makes the hypervisor dial out to a listener
// at host:port, such as the agent's IP-exchange listener).
func (d *domainDescription) AddSerialToTCPDevice(host string, port int, mode string) error {
	devices := d.doc.FindElement("./domain/devices")
	if devices == nil {
		return fmt.Errorf("domain description missing <devices>")
	}

	serial := devices.CreateElement("serial")
	serial.CreateAttr("type", "tcp")

	source := serial.CreateElement("source")
	source.CreateAttr("mode", mode)
	source.CreateAttr("host", host)
	source.CreateAttr("service", fmt.Sprintf("%d", port))

	target := serial.CreateElement("target")
	target.CreateAttr("port", "1")

	return nil
}

// String renders the document back to XML, for handing to the hypervisor
// binding's createLinux call.
func (d *domainDescription) String() (string, error) {
	return d.doc.WriteToString()
}
