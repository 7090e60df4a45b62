// Package transport implements the per-connection TCP transport: a timed
// read loop, a FIFO write queue, optional read/write/connect timeouts,
// and byte-rate accounting, all serialized onto the connection's own
// goroutines rather than a shared lock.
package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/tevino/abool"

	"github.com/opensentinel/sentinel/service/mgr"
)

// readBufSize is the size of the reused read buffer. Per-read data handed
// to OnRead is only valid for the duration of the callback.
const readBufSize = 8 * 1024

// connectTimeout bounds an outgoing Dial.
const connectTimeout = 8 * time.Second

// idleTick is the periodic tick interval while Connecting or freshly
// Connected; it widens to activeTick once a connection has been open for
// a while, matching the source's "1s, extended to 8s" tick schedule.
const idleTick = 1 * time.Second
const activeTick = 8 * time.Second

// ErrKind tags the terminal condition that caused a Transport to stop.
type ErrKind int

// Terminal error kinds reported via OnComplete (connect failures only;
// read/write/timeout errors close silently per the transport contract).
const (
	ErrNone ErrKind = iota
	ErrConnectFailed
	ErrConnectTimeout
)

// Transport wraps a single TCP connection. All of its mutable state is
// either atomic or touched only from its own read-loop/tick goroutine, so
// Write and Stop can be called safely from any goroutine.
type Transport struct {
	mgr  *mgr.Manager
	conn net.Conn

	state      *abool.AtomicBool // Connected iff true; else Disconnected/Connecting tracked by connecting
	connecting *abool.AtomicBool
	stopped    *abool.AtomicBool
	stopOnce   sync.Once

	readTimeout  time.Duration
	writeTimeout time.Duration

	readCounter  *rateCounter
	writeCounter *rateCounter

	writeMu          sync.Mutex
	writeQueue       [][]byte
	writing          bool
	closeAfterWrites bool

	onReadMu sync.Mutex
	onRead   func(t *Transport, buf []byte)

	onCompleteMu sync.Mutex
	onComplete   func(kind ErrKind, err error)

	done chan struct{}
}

func newTransport(m *mgr.Manager) *Transport {
	return &Transport{
		mgr:          m,
		state:        abool.New(),
		connecting:   abool.New(),
		stopped:      abool.New(),
		readCounter:  newRateCounter(),
		writeCounter: newRateCounter(),
		done:         make(chan struct{}),
	}
}

// New wraps an already-established connection, such as one handed back by
// an Accept call. The Transport starts Connected; call Start to begin the
// read loop.
func New(m *mgr.Manager, conn net.Conn) *Transport {
	t := newTransport(m)
	t.conn = conn
	t.state.Set()
	return t
}

// Dial establishes an outgoing connection with an 8s connect timeout. The
// Transport starts Connecting; OnComplete is invoked with ErrConnectFailed
// or ErrConnectTimeout if the dial does not succeed.
func Dial(m *mgr.Manager, network, addr string) *Transport {
	t := newTransport(m)
	t.connecting.Set()
	m.Go("transport-dial", func(w *mgr.WorkerCtx) error {
		d := net.Dialer{Timeout: connectTimeout}
		conn, err := d.DialContext(w.Ctx(), network, addr)
		if err != nil {
			t.connecting.UnSet()
			kind := ErrConnectFailed
			if errors.Is(err, context.DeadlineExceeded) {
				kind = ErrConnectTimeout
			}
			t.fireComplete(kind, err)
			return nil
		}
		t.conn = conn
		t.connecting.UnSet()
		t.state.Set()
		t.Start()
		return nil
	})
	return t
}

// OnRead installs the per-read callback. buf is only valid for the
// duration of the call; the transport reuses its backing array on the
// next read.
func (t *Transport) OnRead(f func(t *Transport, buf []byte)) {
	t.onReadMu.Lock()
	defer t.onReadMu.Unlock()
	t.onRead = f
}

// OnComplete installs the callback invoked when a connect attempt fails
// or times out. It is never invoked for read/write/timeout errors on an
// already-established connection.
func (t *Transport) OnComplete(f func(kind ErrKind, err error)) {
	t.onCompleteMu.Lock()
	defer t.onCompleteMu.Unlock()
	t.onComplete = f
}

func (t *Transport) fireComplete(kind ErrKind, err error) {
	t.onCompleteMu.Lock()
	f := t.onComplete
	t.onCompleteMu.Unlock()
	if f != nil {
		f(kind, err)
	}
}

// SetReadTimeout arms a per-read deadline; zero disables it.
func (t *Transport) SetReadTimeout(d time.Duration) { t.readTimeout = d }

// SetWriteTimeout arms a per-write deadline; zero disables it.
func (t *Transport) SetWriteTimeout(d time.Duration) { t.writeTimeout = d }

// CloseAfterWrites makes the transport stop itself once its write queue
// drains empty.
func (t *Transport) CloseAfterWrites() {
	t.writeMu.Lock()
	t.closeAfterWrites = true
	t.writeMu.Unlock()
}

// State reports the transport's current lifecycle state.
func (t *Transport) State() State {
	switch {
	case t.state.IsSet():
		return Connected
	case t.connecting.IsSet():
		return Connecting
	default:
		return Disconnected
	}
}

// Stats returns cumulative bytes and the current bytes-per-second rate
// for each direction.
func (t *Transport) Stats() (readTotal uint64, readBPS float64, writeTotal uint64, writeBPS float64) {
	readTotal, readBPS, _ = t.readCounter.snapshot()
	writeTotal, writeBPS, _ = t.writeCounter.snapshot()
	return
}

// Start begins the read loop and the bandwidth tick. Only meaningful on a
// Transport already Connected (e.g. from New); Dial starts it internally
// once the connection completes.
func (t *Transport) Start() {
	if !t.state.IsSet() {
		return
	}
	t.mgr.Go("transport-read", t.readLoop)
	t.mgr.Go("transport-tick", t.tickLoop)
}

func (t *Transport) readLoop(w *mgr.WorkerCtx) error {
	buf := make([]byte, readBufSize)
	for {
		if t.readTimeout > 0 {
			_ = t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		}

		n, err := t.conn.Read(buf)
		if n > 0 {
			now := time.Now()
			t.readCounter.add(n, now)

			t.onReadMu.Lock()
			cb := t.onRead
			t.onReadMu.Unlock()
			if cb != nil {
				cb(t, buf[:n])
			}
		}
		if err != nil {
			// ReadError, ReadTimeout: terminal, closed silently.
			t.Stop()
			return nil
		}

		select {
		case <-w.Done():
			return nil
		default:
		}
	}
}

func (t *Transport) tickLoop(w *mgr.WorkerCtx) error {
	interval := idleTick
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.Done():
			return nil
		case <-t.done:
			return nil
		case now := <-ticker.C:
			t.readCounter.tick(now)
			t.writeCounter.tick(now)
			if interval == idleTick && now.Sub(start) >= idleTick {
				interval = activeTick
				ticker.Reset(interval)
			}
		}
	}
}

// Write enqueues a copy of b for sending. Writes submitted before the
// transport reaches Connected are queued and flushed once it does.
func (t *Transport) Write(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)

	t.writeMu.Lock()
	t.writeQueue = append(t.writeQueue, cp)
	startNow := !t.writing && t.state.IsSet()
	if startNow {
		t.writing = true
	}
	t.writeMu.Unlock()

	if startNow {
		t.mgr.Go("transport-write", t.drainWrites)
	}
}

func (t *Transport) drainWrites(w *mgr.WorkerCtx) error {
	for {
		t.writeMu.Lock()
		if len(t.writeQueue) == 0 {
			t.writing = false
			closeAfter := t.closeAfterWrites
			t.writeMu.Unlock()
			if closeAfter {
				t.Stop()
			}
			return nil
		}
		next := t.writeQueue[0]
		t.writeQueue = t.writeQueue[1:]
		t.writeMu.Unlock()

		if t.writeTimeout > 0 {
			_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		}
		n, err := t.conn.Write(next)
		if n > 0 {
			t.writeCounter.add(n, time.Now())
		}
		if err != nil {
			// WriteError, WriteTimeout: terminal, closed silently.
			t.Stop()
			return nil
		}

		select {
		case <-w.Done():
			return nil
		default:
		}
	}
}

// Stop is idempotent: it transitions to Disconnected, closes the socket,
// drops the OnRead/OnComplete callbacks to break reference cycles, and
// leaves the write queue in place (never flushed).
func (t *Transport) Stop() {
	t.stopOnce.Do(func() {
		t.stopped.Set()
		t.state.UnSet()
		t.connecting.UnSet()

		if t.conn != nil {
			_ = t.conn.Close()
		}

		t.onReadMu.Lock()
		t.onRead = nil
		t.onReadMu.Unlock()

		t.onCompleteMu.Lock()
		t.onComplete = nil
		t.onCompleteMu.Unlock()

		close(t.done)
	})
}

// IsStopped reports whether Stop has been called.
func (t *Transport) IsStopped() bool {
	return t.stopped.IsSet()
}

// RemoteAddrParts splits the connection's remote address into an IP and a
// port, for callers that need to build a Threat from it.
func (t *Transport) RemoteAddrParts() (net.IP, uint16) {
	if t.conn == nil {
		return nil, 0
	}
	addr, ok := t.conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		host, _, err := net.SplitHostPort(t.conn.RemoteAddr().String())
		if err != nil {
			return nil, 0
		}
		return net.ParseIP(host), 0
	}
	return addr.IP, uint16(addr.Port)
}
