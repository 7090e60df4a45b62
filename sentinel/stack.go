// Package sentinel composes the listener fleet, the classifier and the
// alert dispatcher into the running system (C9): it owns the shared
// event loop, wires every source's Threat output into the classifier,
// and exposes Start/Stop for the process entrypoint to drive.
package sentinel

import (
	"fmt"

	"github.com/opensentinel/sentinel/alertdispatch"
	"github.com/opensentinel/sentinel/classify"
	"github.com/opensentinel/sentinel/icmp"
	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/tcp"
	"github.com/opensentinel/sentinel/udp"
)

// Stack owns every component for the lifetime of the process.
type Stack struct {
	dataDir string
	group   *mgr.Group
}

// New creates a Stack rooted at dataDir. Call Start to bring it up.
func New(dataDir string) *Stack {
	return &Stack{dataDir: dataDir}
}

// Start builds and starts every component, in dependency order: the
// classifier and dispatcher first (so nothing downstream of a listener
// can ever observe a not-yet-running sink), then the listener fleet. The
// ICMP receiver is optional: if opening its raw socket fails (typically
// for lack of privilege), the rest of the system still starts.
func (s *Stack) Start() error {
	dispatcher := alertdispatch.New(s.dataDir)
	classifier := classify.New(classify.DefaultFingerprints(), dispatcher.OnThreat)
	tcpManager := tcp.New(classifier.Submit)
	udpManager := udp.New(classifier.Submit)
	icmpReceiver := icmp.New(classifier.Submit)

	s.group = mgr.NewGroup(
		classifier,
		dispatcher,
		tcpManager,
		&optionalModule{inner: icmpReceiver, name: "icmp receiver"},
		udpManager,
	)

	if err := s.group.Start(); err != nil {
		return fmt.Errorf("sentinel: start failed: %w", err)
	}
	return nil
}

// Stop tears down every component in reverse start order.
func (s *Stack) Stop() bool {
	if s.group == nil {
		return true
	}
	return s.group.Stop()
}

// optionalModule adapts a mgr.Module whose failure to start must not
// abort the rest of the Stack: its error is logged and swallowed.
type optionalModule struct {
	inner mgr.Module
	name  string
}

func (o *optionalModule) Start(m *mgr.Manager) error {
	if err := o.inner.Start(m); err != nil {
		m.Warn(o.name+" unavailable, continuing without it", "err", err)
	}
	return nil
}

func (o *optionalModule) Stop(m *mgr.Manager) error {
	return o.inner.Stop(m)
}
