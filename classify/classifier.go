// Package classify implements the threat classifier: it takes a raw
// Threat observation from a listener and assigns it the severity level
// that decides whether the dispatcher ever hears about it.
package classify

import (
	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/strand"
	"github.com/opensentinel/sentinel/threat"
)

// Classifier assigns a severity Level to every Threat it is handed. All
// classification runs on a single strand, so the rules never need locks
// of their own even when fed by many concurrent listeners. It implements
// mgr.Module: its strand is created in Start and lives for as long as the
// manager it is given there.
type Classifier struct {
	strand       *strand.Strand
	fingerprints FingerprintList
	forward      func(threat.Threat)
}

// New creates a Classifier. forward is invoked, on the classifier's own
// strand, with every Threat once it has been assigned a Level greater
// than L0.
func New(fingerprints FingerprintList, forward func(threat.Threat)) *Classifier {
	return &Classifier{
		fingerprints: fingerprints,
		forward:      forward,
	}
}

// Start implements mgr.Module.
func (c *Classifier) Start(m *mgr.Manager) error {
	c.strand = strand.New(m, "classifier")
	return nil
}

// Stop implements mgr.Module. The strand's goroutine is tied to m's
// context and stops on its own once m is canceled.
func (c *Classifier) Stop(m *mgr.Manager) error {
	return nil
}

// Submit queues t for classification. Safe to call from any goroutine.
// t is forwarded downstream only if it is classified above L0; otherwise
// it is dropped.
func (c *Classifier) Submit(t threat.Threat) {
	c.strand.Post(func() {
		t.Level = c.classify(t)
		if t.Level > threat.L0 {
			c.forward(t)
		}
	})
}

// classify computes the severity level for t, honoring any level already
// assigned upstream (e.g. UDP and ICMP listeners pre-assign L3) by never
// downgrading below it.
func (c *Classifier) classify(t threat.Threat) threat.Level {
	level := t.Level

	switch {
	case len(t.Buffer) == 0 && level == threat.L0:
		level = threat.L1
	case c.fingerprints.Contains(t.Buffer):
		level = threat.L3
	case len(t.Buffer) > 0:
		level = threat.L2
	}

	if t.Level > level {
		return t.Level
	}
	return level
}
