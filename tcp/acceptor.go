// Package tcp implements the TCP side of the listener fleet: a dual-stack
// acceptor per port (C2) and a manager owning one acceptor per port across
// the covered ranges (C5).
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/transport"
)

// reaperTick is how often the acceptor's transport registry is swept for
// transports that have stopped.
const reaperTick = 1 * time.Second

// Acceptor binds a port on both IPv4 and IPv6 and hands every accepted
// connection to the installed OnAccept callback as a *transport.Transport.
type Acceptor struct {
	mgr  *mgr.Manager
	port uint16

	ln4, ln6 net.Listener

	onAcceptMu sync.Mutex
	onAccept   func(*transport.Transport)

	registryMu sync.Mutex
	registry   map[*transport.Transport]struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// NewAcceptor creates an Acceptor for port. Call Open to bind it.
func NewAcceptor(m *mgr.Manager, port uint16) *Acceptor {
	return &Acceptor{
		mgr:      m,
		port:     port,
		registry: make(map[*transport.Transport]struct{}),
		closed:   make(chan struct{}),
	}
}

// SetOnAccept installs the callback invoked for every accepted connection.
func (a *Acceptor) SetOnAccept(f func(*transport.Transport)) {
	a.onAcceptMu.Lock()
	defer a.onAcceptMu.Unlock()
	a.onAccept = f
}

// Open binds both the IPv4 and IPv6 sockets for the acceptor's port and
// starts accepting. If the v6 bind fails after v4 succeeded, both sockets
// are torn down and the error is returned.
func (a *Acceptor) Open(ctx context.Context) error {
	lc4 := net.ListenConfig{Control: reuseAddrControl}
	ln4, err := lc4.Listen(ctx, "tcp4", fmt.Sprintf("0.0.0.0:%d", a.port))
	if err != nil {
		return classifyListenErr(err)
	}

	lc6 := net.ListenConfig{Control: v6OnlyControl}
	ln6, err := lc6.Listen(ctx, "tcp6", fmt.Sprintf("[::]:%d", a.port))
	if err != nil {
		_ = ln4.Close()
		return classifyListenErr(err)
	}

	a.ln4, a.ln6 = ln4, ln6
	a.mgr.Go(fmt.Sprintf("tcp-accept-v4-%d", a.port), a.acceptLoop(ln4))
	a.mgr.Go(fmt.Sprintf("tcp-accept-v6-%d", a.port), a.acceptLoop(ln6))
	a.mgr.Repeat(fmt.Sprintf("tcp-reap-%d", a.port), reaperTick, a.reap)
	return nil
}

func (a *Acceptor) acceptLoop(ln net.Listener) func(w *mgr.WorkerCtx) error {
	return func(w *mgr.WorkerCtx) error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-w.Done():
					return nil
				default:
				}
				select {
				case <-a.closed:
					return nil
				default:
				}
				// A transient accept error; re-arm rather than dying.
				continue
			}
			a.handleAccepted(conn)
		}
	}
}

func (a *Acceptor) handleAccepted(conn net.Conn) {
	tr := transport.New(a.mgr, conn)

	a.registryMu.Lock()
	a.registry[tr] = struct{}{}
	a.registryMu.Unlock()

	a.onAcceptMu.Lock()
	cb := a.onAccept
	a.onAcceptMu.Unlock()
	if cb != nil {
		cb(tr)
	}

	tr.Start()
}

// reap removes transports that have stopped from the registry.
func (a *Acceptor) reap(w *mgr.WorkerCtx) error {
	a.registryMu.Lock()
	defer a.registryMu.Unlock()
	for tr := range a.registry {
		if tr.IsStopped() {
			delete(a.registry, tr)
		}
	}
	return nil
}

// LiveCount reports the number of transports still tracked (used by
// tests verifying reaper behavior).
func (a *Acceptor) LiveCount() int {
	a.registryMu.Lock()
	defer a.registryMu.Unlock()
	return len(a.registry)
}

// IsClosed reports whether Close has been called.
func (a *Acceptor) IsClosed() bool {
	select {
	case <-a.closed:
		return true
	default:
		return false
	}
}

// Close is idempotent: it stops accepting, closes both listeners and
// every live transport. Any errors closing the two listener sockets are
// combined into a single error.
func (a *Acceptor) Close() error {
	var closeErr error
	a.closeOnce.Do(func() {
		close(a.closed)

		var merr *multierror.Error
		if a.ln4 != nil {
			merr = multierror.Append(merr, a.ln4.Close())
		}
		if a.ln6 != nil {
			merr = multierror.Append(merr, a.ln6.Close())
		}
		closeErr = merr.ErrorOrNil()

		a.registryMu.Lock()
		defer a.registryMu.Unlock()
		for tr := range a.registry {
			tr.Stop()
			delete(a.registry, tr)
		}
	})
	return closeErr
}
