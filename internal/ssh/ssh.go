// Package ssh provides the SSH+SFTP client used to push scheduler config
// and launch the worker daemon on a freshly booted remote-virt guest.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Client implements Communicator over a single lazily-dialed SSH
// connection, reused across Execute/UploadBytes calls until Close. Dialing
// retries with a fixed interval since a just-booted guest may not have its
// SSH daemon up yet when the agent first tries to reach it.
type Client struct {
	host       string
	port       int
	user       string
	privateKey []byte

	client *ssh.Client
}

// NewClient returns a Client targeting host:port as user, authenticating
// with privateKey (PEM-encoded).
func NewClient(host string, port int, user string, privateKey []byte) *Client {
	return &Client{host: host, port: port, user: user, privateKey: privateKey}
}

func (c *Client) dial(ctx context.Context) (*ssh.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	signer, err := ssh.ParsePrivateKey(c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User: c.user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // guest identity is established by the IP-exchange handoff, not host keys
		Timeout:         10 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", c.host, c.port)

	var client *ssh.Client
	for attempt := 0; attempt < 10; attempt++ {
		client, err = ssh.Dial("tcp", addr, config)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	if client == nil {
		return nil, fmt.Errorf("dial ssh %s: %w", addr, err)
	}

	c.client = client
	return client, nil
}

// Execute runs command over a fresh SSH session and returns its combined
// output. A nonzero exit is reported as an error carrying the output.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out

	if err := session.Run(command); err != nil {
		return out.String(), fmt.Errorf("command %q failed: %w", command, err)
	}

	return out.String(), nil
}

// UploadBytes writes data to remotePath via SFTP, creating any missing
// parent directory first.
func (c *Client) UploadBytes(ctx context.Context, remotePath string, data []byte) error {
	client, err := c.dial(ctx)
	if err != nil {
		return err
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("open sftp session: %w", err)
	}
	defer sftpClient.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := sftpClient.MkdirAll(dir); err != nil {
			return fmt.Errorf("create remote directory %q: %w", dir, err)
		}
	}

	f, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %q: %w", remotePath, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write remote file %q: %w", remotePath, err)
	}

	return nil
}

// Close releases the underlying SSH connection, if one was established.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
