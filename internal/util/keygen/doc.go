// Package keygen generates RSA key pairs for SSH authentication.
//
// Keys are produced in PEM format (private) and OpenSSH authorized_keys
// format (public), the formats of the key pair the remote-virt agent
// reads from disk (its `vurmd-libvirt.key` config setting and the `.pub`
// file beside it) and presents to guests during the IP-exchange handshake
// (internal/remotevirt/agent.startIPExchange). No other package in the
// module calls this one; the `vurmctl init` wizard does not create that
// key pair.
package keygen
