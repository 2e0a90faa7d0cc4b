package agent

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/digitalocean/go-libvirt"

	"github.com/vurm-project/vurm/internal/vurmerr"
)

// hypervisorConnectTimeout bounds dialing the libvirt socket.
const hypervisorConnectTimeout = 10 * time.Second

// dialHypervisor connects to the libvirt daemon at uri, a
// `unix:///path/to/socket` or `tcp://host:port` connection string, and
// performs the libvirt RPC handshake. Callers must Disconnect when done.
//
// A connection failure is reported as vurmerr.ConnectError so callers can
// distinguish "hypervisor unreachable" from other libvirt RPC failures.
func dialHypervisor(uri string) (*libvirt.Libvirt, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse hypervisor uri %q: %w", uri, err)
	}

	var conn net.Conn
	switch u.Scheme {
	case "unix":
		conn, err = net.DialTimeout("unix", u.Path, hypervisorConnectTimeout)
	case "tcp":
		conn, err = net.DialTimeout("tcp", u.Host, hypervisorConnectTimeout)
	default:
		return nil, fmt.Errorf("unsupported hypervisor scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, &vurmerr.ConnectError{Target: uri, Cause: err}
	}

	l := libvirt.New(conn)
	if err := l.Connect(); err != nil {
		conn.Close()
		return nil, &vurmerr.ConnectError{Target: uri, Cause: err}
	}

	return l, nil
}

// createDomain starts a transient domain from descriptionXML. It is a
// blocking hypervisor call; the caller runs it on its own goroutine.
func createDomain(conn *libvirt.Libvirt, descriptionXML string) error {
	_, err := conn.DomainCreateXML(descriptionXML, 0)
	return err
}

// destroyDomainByName looks up and destroys a running domain by name.
// Returns false, nil if no such domain was found; a missing domain is
// treated as already torn down rather than an error.
func destroyDomainByName(conn *libvirt.Libvirt, name string) (bool, error) {
	dom, err := conn.DomainLookupByName(name)
	if err != nil {
		return false, nil
	}
	if err := conn.DomainDestroy(dom); err != nil {
		return false, err
	}
	return true, nil
}
