// Package rpcpool implements a reconnecting, round-robin pool of net/rpc
// client sessions over a fixed set of endpoint descriptors. Each entry
// reconnects on its own goroutine with exponential backoff (initial delay,
// multiplier, capped maximum), looping unboundedly for the life of the
// pool rather than giving up after a fixed attempt count.
package rpcpool

import (
	"context"
	"fmt"
	"net/rpc"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vurm-project/vurm/internal/vlog"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
)

// Pool owns one auto-reconnecting entry per endpoint and a shared,
// atomically advanced round-robin cursor across them.
type Pool struct {
	entries []*entry
	cursor  uint64
	log     vlog.Logger

	mu      sync.Mutex
	started bool
}

// New parses descriptors (expanding host ranges) and returns a Pool ready
// to Start. It performs no network I/O.
func New(descriptors []string) (*Pool, error) {
	expanded, err := ExpandEndpoints(descriptors)
	if err != nil {
		return nil, fmt.Errorf("expand endpoints: %w", err)
	}
	if len(expanded) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}

	entries := make([]*entry, len(expanded))
	for i, d := range expanded {
		addr, err := DialAddr(d)
		if err != nil {
			return nil, err
		}
		entries[i] = newEntry(addr)
	}

	return &Pool{entries: entries, log: vlog.Named("rpcpool")}, nil
}

// Start begins the reconnect loop for every endpoint. Starting a pool
// twice is a programmer error.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		panic("rpcpool: pool already started")
	}
	p.started = true

	for _, e := range p.entries {
		e.start(p.log)
	}
}

// Stop halts all reconnection attempts and closes any live sessions.
func (p *Pool) Stop() {
	for _, e := range p.entries {
		e.stop()
	}
}

// GetNextConnection advances the shared round-robin cursor and returns the
// live (or next-to-arrive) session for that endpoint, along with its
// address so the caller can later Invalidate it. It blocks until a
// connection is available or ctx is done.
func (p *Pool) GetNextConnection(ctx context.Context) (*rpc.Client, string, error) {
	i := atomic.AddUint64(&p.cursor, 1) - 1
	e := p.entries[i%uint64(len(p.entries))]
	client, err := e.getConnection(ctx)
	if err != nil {
		return nil, e.addr, err
	}
	return client, e.addr, nil
}

// Invalidate marks the session at addr as dead, forcing that endpoint's
// entry to reconnect. Callers invoke this after an RPC call on a session
// fails with a transport-level error, since net/rpc itself has no
// connection health callback.
func (p *Pool) Invalidate(addr string) {
	for _, e := range p.entries {
		if e.addr == addr {
			e.invalidateCurrent()
			return
		}
	}
}

type entry struct {
	addr string
	log  vlog.Logger

	mu         sync.Mutex
	client     *rpc.Client
	invalidate chan struct{}
	waiters    []chan *rpc.Client
	stopCh     chan struct{}
}

func newEntry(addr string) *entry {
	return &entry{addr: addr}
}

func (e *entry) start(log vlog.Logger) {
	e.log = log.With(map[string]string{"endpoint": e.addr})
	e.stopCh = make(chan struct{})
	go e.reconnectLoop()
}

func (e *entry) stop() {
	e.mu.Lock()
	stopCh := e.stopCh
	e.mu.Unlock()
	if stopCh != nil {
		close(stopCh)
	}
}

func (e *entry) reconnectLoop() {
	backoff := initialBackoff

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		client, err := rpc.Dial("tcp", e.addr)
		if err != nil {
			e.log.Warn("connect failed, retrying", "error", err.Error(), "backoff", backoff.String())
			select {
			case <-e.stopCh:
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		e.log.Info("connected")
		backoff = initialBackoff

		e.mu.Lock()
		e.client = client
		inv := make(chan struct{})
		e.invalidate = inv
		waiters := e.waiters
		e.waiters = nil
		e.mu.Unlock()

		for _, w := range waiters {
			w <- client
		}

		select {
		case <-e.stopCh:
			client.Close()
			return
		case <-inv:
			client.Close()
			e.mu.Lock()
			e.client = nil
			e.mu.Unlock()
			e.log.Warn("session invalidated, reconnecting")
		}
	}
}

func (e *entry) getConnection(ctx context.Context) (*rpc.Client, error) {
	e.mu.Lock()
	if e.client != nil {
		c := e.client
		e.mu.Unlock()
		return c, nil
	}
	ch := make(chan *rpc.Client, 1)
	e.waiters = append(e.waiters, ch)
	e.mu.Unlock()

	select {
	case c := <-ch:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *entry) invalidateCurrent() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.invalidate == nil {
		return
	}
	select {
	case <-e.invalidate:
		// already closed
	default:
		close(e.invalidate)
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * backoffFactor)
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
