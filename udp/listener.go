// Package udp implements the UDP side of the listener fleet: a
// dual-stack datagram listener per port (C3) and a manager owning one
// listener per port across the covered ranges (C6).
package udp

import (
	"fmt"
	"net"
	"sync"

	"github.com/opensentinel/sentinel/service/mgr"
)

// recvBufSize is the size of the reused receive buffer; datagrams larger
// than this cannot occur over UDP (65,535 is the protocol's own cap).
const recvBufSize = 65535

// Listener binds a port on both IPv4 and IPv6 UDP and hands every
// datagram to the installed OnReceive callback.
type Listener struct {
	mgr  *mgr.Manager
	port uint16

	mu       sync.Mutex
	conn4    *net.UDPConn
	conn6    *net.UDPConn
	closed   bool

	onReceive func(addr net.IP, port uint16, payload []byte)
}

// NewListener creates a Listener for port. Call Open to bind it.
func NewListener(m *mgr.Manager, port uint16) *Listener {
	return &Listener{mgr: m, port: port}
}

// SetOnReceive installs the per-datagram callback. payload is only valid
// for the duration of the call.
func (l *Listener) SetOnReceive(f func(addr net.IP, port uint16, payload []byte)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReceive = f
}

// Open binds both the IPv4 and IPv6 sockets for the listener's port and
// starts receiving.
func (l *Listener) Open() error {
	conn4, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(l.port)})
	if err != nil {
		return classifyUDPErr(err)
	}

	conn6, err := net.ListenUDP("udp6", &net.UDPAddr{Port: int(l.port)})
	if err != nil {
		_ = conn4.Close()
		return classifyUDPErr(err)
	}

	l.mu.Lock()
	l.conn4, l.conn6 = conn4, conn6
	l.mu.Unlock()

	l.mgr.Go(fmt.Sprintf("udp-recv-v4-%d", l.port), l.recvLoop(conn4))
	l.mgr.Go(fmt.Sprintf("udp-recv-v6-%d", l.port), l.recvLoop(conn6))
	return nil
}

func (l *Listener) recvLoop(conn *net.UDPConn) func(w *mgr.WorkerCtx) error {
	return func(w *mgr.WorkerCtx) error {
		buf := make([]byte, recvBufSize)
		for {
			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				select {
				case <-w.Done():
					return nil
				default:
				}
				if l.isClosed() {
					return nil
				}
				// Transient error: re-arm.
				continue
			}

			if n == 0 || n > recvBufSize {
				continue
			}

			l.mu.Lock()
			cb := l.onReceive
			l.mu.Unlock()
			if cb != nil {
				cb(src.IP, uint16(src.Port), buf[:n])
			}
		}
	}
}

// SendTo performs a blocking send. A broken-pipe error closes and reopens
// the socket for that address family.
func (l *Listener) SendTo(addr *net.UDPAddr, payload []byte) error {
	l.mu.Lock()
	var conn *net.UDPConn
	if addr.IP.To4() != nil {
		conn = l.conn4
	} else {
		conn = l.conn6
	}
	l.mu.Unlock()

	if conn == nil {
		return net.ErrClosed
	}

	_, err := conn.WriteToUDP(payload, addr)
	if err != nil {
		l.reopen(addr.IP.To4() != nil)
	}
	return err
}

func (l *Listener) reopen(v4 bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v4 {
		if l.conn4 != nil {
			_ = l.conn4.Close()
		}
		if conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(l.port)}); err == nil {
			l.conn4 = conn
			l.mgr.Go(fmt.Sprintf("udp-recv-v4-%d", l.port), l.recvLoop(conn))
		}
		return
	}
	if l.conn6 != nil {
		_ = l.conn6.Close()
	}
	if conn, err := net.ListenUDP("udp6", &net.UDPAddr{Port: int(l.port)}); err == nil {
		l.conn6 = conn
		l.mgr.Go(fmt.Sprintf("udp-recv-v6-%d", l.port), l.recvLoop(conn))
	}
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close is idempotent: it stops receiving and closes both sockets.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.conn4 != nil {
		_ = l.conn4.Close()
	}
	if l.conn6 != nil {
		_ = l.conn6.Close()
	}
}

// IsClosed reports whether Close has been called.
func (l *Listener) IsClosed() bool {
	return l.isClosed()
}
