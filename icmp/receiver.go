// Package icmp implements the raw ICMPv4 receiver (C4): it opens a raw
// socket, manually decodes the IPv4 and ICMP headers of everything it
// reads (per the wire layout documented in parse.go), and turns echo
// requests and replies into Threats.
package icmp

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/strand"
	"github.com/opensentinel/sentinel/threat"
)

// recvBufSize is large enough for any IPv4 datagram.
const recvBufSize = 65536

// Receiver owns the raw ICMP socket. Opening it requires elevated
// privileges; failure is non-fatal to the system, so callers treat a
// non-nil error from Start as "ICMP detection absent, continue anyway".
type Receiver struct {
	strand *strand.Strand

	OnThreat func(threat.Threat)

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// New creates a Receiver. OnThreat is invoked for every echo request or
// reply observed; it must be set before Start.
func New(onThreat func(threat.Threat)) *Receiver {
	return &Receiver{OnThreat: onThreat}
}

// Start implements mgr.Module. A failure to open the raw socket (usually
// lack of privilege) is returned so the caller can downgrade ICMP
// detection to absent without failing the rest of the system.
func (r *Receiver) Start(m *mgr.Manager) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_ICMP)
	if err != nil {
		return err
	}

	r.strand = strand.New(m, "icmp-receiver")
	r.file = os.NewFile(uintptr(fd), "icmp-raw")

	m.Go("icmp-recv", r.recvLoop)
	return nil
}

// Stop implements mgr.Module.
func (r *Receiver) Stop(m *mgr.Manager) error {
	r.Close()
	return nil
}

func (r *Receiver) recvLoop(w *mgr.WorkerCtx) error {
	buf := make([]byte, recvBufSize)
	for {
		n, err := r.file.Read(buf)
		if err != nil {
			select {
			case <-w.Done():
				return nil
			default:
			}
			if r.isClosed() {
				return nil
			}
			continue
		}

		pkt, err := Parse(buf[:n])
		if err != nil {
			// ParseFailed: drop the datagram, re-arm.
			continue
		}
		if !pkt.IsEcho() {
			continue
		}

		src := pkt.Source
		r.strand.Post(func() {
			r.OnThreat(threat.New(threat.ICMP, src, 0, nil, threat.L3))
		})
	}
}

func (r *Receiver) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close is idempotent.
func (r *Receiver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.file == nil {
		r.closed = true
		return
	}
	r.closed = true
	_ = r.file.Close()
}
