package tcp

import (
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/opensentinel/sentinel/portrange"
	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/strand"
	"github.com/opensentinel/sentinel/threat"
	"github.com/opensentinel/sentinel/transport"
)

// acceptTimeout is applied to every accepted transport so an attacker
// cannot hold a socket open indefinitely.
const acceptTimeout = 5 * time.Second

// managerReapTick is how often the manager sweeps its own acceptor set
// for ones that have been closed.
const managerReapTick = 8 * time.Second

// Manager owns one Acceptor per port across portrange.Ranges and turns
// every accept and every first read into a Threat handed to OnThreat.
// It implements mgr.Module.
type Manager struct {
	strand *strand.Strand

	OnThreat func(threat.Threat)

	mu        sync.Mutex
	acceptors []*Acceptor
}

// New creates a TCP Manager. OnThreat is invoked for every observation;
// it must be set before Start.
func New(onThreat func(threat.Threat)) *Manager {
	return &Manager{OnThreat: onThreat}
}

// Start implements mgr.Module: it opens an Acceptor for every port in
// portrange.Ranges, stopping the walk early on fd exhaustion.
func (mg *Manager) Start(m *mgr.Manager) error {
	mg.strand = strand.New(m, "tcp-manager")

	portrange.Walk(func(port uint16) bool {
		a := NewAcceptor(m, port)
		a.SetOnAccept(mg.onAccept)

		err := a.Open(m.Ctx())
		switch err {
		case nil:
			mg.mu.Lock()
			mg.acceptors = append(mg.acceptors, a)
			mg.mu.Unlock()
		case ErrAddrInUse:
			m.Warn("tcp port busy, skipping", "port", port)
		case ErrFdExhausted:
			m.Error("fd limit reached, aborting tcp range walk", "port", port)
			return false
		default:
			m.Warn("tcp acceptor open failed", "port", port, "err", err)
		}
		return true
	})

	m.Repeat("tcp-manager-reap", managerReapTick, mg.reap)
	return nil
}

// Stop implements mgr.Module: it closes every acceptor it opened.
func (mg *Manager) Stop(m *mgr.Manager) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	var merr *multierror.Error
	for _, a := range mg.acceptors {
		merr = multierror.Append(merr, a.Close())
	}
	return merr.ErrorOrNil()
}

func (mg *Manager) onAccept(tr *transport.Transport) {
	tr.SetReadTimeout(acceptTimeout)
	tr.SetWriteTimeout(acceptTimeout)

	addr, port := splitRemote(tr)
	mg.strand.Post(func() {
		mg.OnThreat(threat.New(threat.TCP, addr, port, nil, threat.L0))
	})

	var reportFirstRead sync.Once
	tr.OnRead(func(_ *transport.Transport, buf []byte) {
		reportFirstRead.Do(func() {
			sample := make([]byte, len(buf))
			copy(sample, buf)
			mg.strand.Post(func() {
				mg.OnThreat(threat.New(threat.TCP, addr, port, sample, threat.L0))
			})
		})
	})
}

func (mg *Manager) reap(w *mgr.WorkerCtx) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	live := mg.acceptors[:0]
	for _, a := range mg.acceptors {
		if !a.IsClosed() {
			live = append(live, a)
		}
	}
	mg.acceptors = live
	return nil
}

func splitRemote(tr *transport.Transport) (net.IP, uint16) {
	addr, port := tr.RemoteAddrParts()
	return addr, port
}
