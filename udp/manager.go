package udp

import (
	"net"
	"sync"
	"time"

	"github.com/opensentinel/sentinel/portrange"
	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/strand"
	"github.com/opensentinel/sentinel/threat"
)

// managerReapTick is how often the manager sweeps its own listener set
// for ones that have been closed.
const managerReapTick = 8 * time.Second

// Manager owns one Listener per port across portrange.Ranges and turns
// every received datagram into a Threat handed to OnThreat. It
// implements mgr.Module.
type Manager struct {
	strand *strand.Strand

	OnThreat func(threat.Threat)

	mu        sync.Mutex
	listeners []*Listener
}

// New creates a UDP Manager. OnThreat is invoked for every observation;
// it must be set before Start.
func New(onThreat func(threat.Threat)) *Manager {
	return &Manager{OnThreat: onThreat}
}

// Start implements mgr.Module: it opens a Listener for every port in
// portrange.Ranges, stopping the walk early on fd exhaustion.
func (mg *Manager) Start(m *mgr.Manager) error {
	mg.strand = strand.New(m, "udp-manager")

	portrange.Walk(func(port uint16) bool {
		l := NewListener(m, port)
		l.SetOnReceive(mg.onReceive)

		switch err := l.Open(); err {
		case nil:
			mg.mu.Lock()
			mg.listeners = append(mg.listeners, l)
			mg.mu.Unlock()
		case ErrAddrInUse:
			m.Warn("udp port busy, skipping", "port", port)
		case ErrFdExhausted:
			m.Error("fd limit reached, aborting udp range walk", "port", port)
			return false
		default:
			m.Warn("udp listener open failed", "port", port, "err", err)
		}
		return true
	})

	m.Repeat("udp-manager-reap", managerReapTick, mg.reap)
	return nil
}

// Stop implements mgr.Module: it closes every listener it opened.
func (mg *Manager) Stop(m *mgr.Manager) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	for _, l := range mg.listeners {
		l.Close()
	}
	return nil
}

func (mg *Manager) onReceive(addr net.IP, port uint16, payload []byte) {
	sample := make([]byte, len(payload))
	copy(sample, payload)
	mg.strand.Post(func() {
		mg.OnThreat(threat.New(threat.UDP, addr, port, sample, threat.L3))
	})
}

func (mg *Manager) reap(w *mgr.WorkerCtx) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	live := mg.listeners[:0]
	for _, l := range mg.listeners {
		if !l.IsClosed() {
			live = append(live, l)
		}
	}
	mg.listeners = live
	return nil
}
