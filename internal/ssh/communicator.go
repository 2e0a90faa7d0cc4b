// Package ssh provides the SSH+SFTP client used to push scheduler config
// and launch the worker daemon on a freshly booted remote-virt guest.
package ssh

import "context"

// Communicator executes commands and transfers files to a remote guest.
// *Client implements it. The remote-virt agent constructs a *Client
// directly (NewClient) and does not go through this interface.
type Communicator interface {
	// Execute runs a command on the remote host and returns its combined
	// stdout+stderr. A nonzero exit is reported as an error.
	Execute(ctx context.Context, command string) (string, error)
	// UploadBytes writes data to remotePath on the remote host via SFTP,
	// creating or truncating the file and any missing parent directories.
	UploadBytes(ctx context.Context, remotePath string, data []byte) error
	// Close releases the underlying SSH connection.
	Close() error
}
