// Package strand provides a serialization domain: a single-consumer queue
// that runs posted closures one at a time, in the order they were posted,
// regardless of how many goroutines post to it. It is the Go rendition of
// the "strand" concept described for the network, classifier and
// dispatcher domains: each owns exactly one Strand, and any state private
// to that domain is only ever touched from inside a closure run on it.
package strand

import (
	"github.com/opensentinel/sentinel/service/mgr"
)

// Strand is a FIFO, non-overlapping task queue backed by one goroutine.
type Strand struct {
	tasks chan func()
	mgr   *mgr.Manager
}

// New creates a Strand and starts its consumer goroutine as a worker of m.
// The consumer stops when m's context is canceled.
func New(m *mgr.Manager, name string) *Strand {
	s := &Strand{
		tasks: make(chan func(), 256),
		mgr:   m,
	}
	m.Go(name, s.run)
	return s
}

func (s *Strand) run(w *mgr.WorkerCtx) error {
	for {
		select {
		case fn := <-s.tasks:
			fn()
		case <-w.Done():
			return nil
		}
	}
}

// Post enqueues fn for execution on the strand. Post never blocks the
// caller on the execution of fn; it only blocks if the strand's backlog
// is full, which signals the domain is overloaded.
func (s *Strand) Post(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.mgr.Done():
		// Strand is shutting down; drop the work rather than leak a goroutine.
	}
}
