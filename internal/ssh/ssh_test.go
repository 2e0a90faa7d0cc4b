package ssh

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/sftp"
	xssh "golang.org/x/crypto/ssh"
)

// testKeyPair generates a fresh RSA key pair: a PEM-encoded private key for
// the client (the same PKCS1 shape internal/util/keygen produces) and a
// matching signer for the test server's host key.
func testKeyPair(t *testing.T) (privPEM []byte, signer xssh.Signer) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	privPEM = pem.EncodeToMemory(block)

	signer, err = xssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatalf("signer from key: %v", err)
	}
	return privPEM, signer
}

// startTestSSHServer accepts connections, authenticating any public key,
// and serves "exec" requests by writing a fixed reply and "subsystem sftp"
// requests via an in-memory SFTP server rooted at dir.
func startTestSSHServer(t *testing.T, hostSigner xssh.Signer, dir string) string {
	t.Helper()

	config := &xssh.ServerConfig{
		PublicKeyCallback: func(conn xssh.ConnMetadata, key xssh.PublicKey) (*xssh.Permissions, error) {
			return &xssh.Permissions{}, nil
		},
	}
	config.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			nConn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleTestSSHConn(nConn, config, dir)
		}
	}()

	return ln.Addr().String()
}

func handleTestSSHConn(nConn net.Conn, config *xssh.ServerConfig, dir string) {
	sConn, chans, reqs, err := xssh.NewServerConn(nConn, config)
	if err != nil {
		return
	}
	defer sConn.Close()
	go xssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(xssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			return
		}

		go func() {
			for req := range requests {
				switch req.Type {
				case "exec":
					req.Reply(true, nil)
					channel.Write([]byte("ok\n"))
					channel.SendRequest("exit-status", false, xssh.Marshal(struct{ Status uint32 }{0}))
					channel.Close()
				case "subsystem":
					if len(req.Payload) >= 4 && string(req.Payload[4:]) == "sftp" {
						req.Reply(true, nil)
						server, err := sftp.NewServer(channel, sftp.WithServerWorkingDirectory(dir))
						if err == nil {
							server.Serve()
						}
						channel.Close()
					} else {
						req.Reply(false, nil)
					}
				default:
					req.Reply(false, nil)
				}
			}
		}()
	}
}

func splitTestAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

func TestClient_Execute(t *testing.T) {
	priv, signer := testKeyPair(t)
	addr := startTestSSHServer(t, signer, t.TempDir())
	host, port := splitTestAddr(t, addr)

	c := NewClient(host, port, "vurm", priv)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := c.Execute(ctx, "echo hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok\n" {
		t.Fatalf("expected %q, got %q", "ok\n", out)
	}
}

func TestClient_UploadBytes(t *testing.T) {
	priv, signer := testKeyPair(t)
	dir := t.TempDir()
	addr := startTestSSHServer(t, signer, dir)
	host, port := splitTestAddr(t, addr)

	c := NewClient(host, port, "vurm", priv)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload := []byte("PartitionName=vc-abc1234 Nodes=nd-abc1234-[0-1]\n")
	if err := c.UploadBytes(ctx, "sub/dir/slurm.conf", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(dir + "/sub/dir/slurm.conf")
	if err != nil {
		t.Fatalf("expected uploaded file to exist: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("expected uploaded contents %q, got %q", payload, got)
	}
}
