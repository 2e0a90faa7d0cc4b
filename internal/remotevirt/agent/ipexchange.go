package agent

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// ipExchangeDelay is the pause given to the guest to open its serial
// device before the agent sends the key, and before resolving the address
// future to let the key land on the wire.
const ipExchangeDelay = 1 * time.Second

// ipExchangeTimeout bounds how long the agent waits for the guest to open
// its side of the serial-to-TCP channel at all.
const ipExchangeTimeout = 30 * time.Second

// startIPExchange opens a loopback TCP listener implementing the
// IP-exchange mini-protocol: the guest connects, sends one line with its
// IPv4 address; the agent waits, sends one line with publicKey (OpenSSH
// format, single line, no trailing newline beyond the line terminator),
// and closes. It returns the bound port and a channel that receives the
// guest's address once the exchange completes (or closes on error/cancel).
func startIPExchange(ctx context.Context, publicKey []byte) (port int, addressCh <-chan string, err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, nil, fmt.Errorf("listen for ip exchange: %w", err)
	}

	result := make(chan string, 1)

	go func() {
		defer ln.Close()
		defer close(result)

		acceptCh := make(chan net.Conn, 1)
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				acceptCh <- conn
			}
		}()

		var conn net.Conn
		select {
		case conn = <-acceptCh:
		case <-time.After(ipExchangeTimeout):
			return
		case <-ctx.Done():
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		address := strings.TrimRight(line, "\r\n")

		// Give the guest time to open its serial device before writing
		// the key.
		select {
		case <-time.After(ipExchangeDelay):
		case <-ctx.Done():
			return
		}

		if _, err := conn.Write(append(publicKey, '\r', '\n')); err != nil {
			return
		}
		conn.Close()

		// Give the key time to land on the wire before resolving the
		// address.
		select {
		case <-time.After(ipExchangeDelay):
		case <-ctx.Done():
			return
		}

		result <- address
	}()

	port = ln.Addr().(*net.TCPAddr).Port
	return port, result, nil
}
