// Package alertdispatch implements the alert dispatcher: it deduplicates
// classified threats by fingerprint and invokes an external response
// script for every one that is not a repeat within the suppression
// window.
package alertdispatch

import (
	"os/exec"
	"time"

	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/strand"
	"github.com/opensentinel/sentinel/threat"
)

// Dispatcher turns accepted threats into external command invocations,
// deduplicated by fingerprint for ttl. It implements mgr.Module.
type Dispatcher struct {
	dataDir string

	strand     *strand.Strand
	mgr        *mgr.Manager
	cache      *cache
	scriptPath string
}

// New creates a Dispatcher. dataDir is used to locate (and, if absent,
// create) the response script.
func New(dataDir string) *Dispatcher {
	return &Dispatcher{dataDir: dataDir}
}

// Start implements mgr.Module.
func (d *Dispatcher) Start(m *mgr.Manager) error {
	scriptPath, err := ensureScript(d.dataDir)
	if err != nil {
		return err
	}

	d.strand = strand.New(m, "dispatcher")
	d.mgr = m
	d.cache = newCache()
	d.scriptPath = scriptPath

	m.Repeat("dispatcher-cache-sweep", sweepInterval, d.sweep)
	return nil
}

// Stop implements mgr.Module.
func (d *Dispatcher) Stop(m *mgr.Manager) error {
	return nil
}

// OnThreat handles a classified threat. Threats at L0 must never reach
// here; callers (the classifier) are responsible for filtering those out.
func (d *Dispatcher) OnThreat(t threat.Threat) {
	d.strand.Post(func() {
		d.handle(t)
	})
}

func (d *Dispatcher) handle(t threat.Threat) {
	a := threat.NewAlert(t)
	now := time.Now()

	if !d.cache.seen(a.Fingerprint, now) {
		remaining := d.cache.remainingSuppression(a.Fingerprint, now)
		d.mgr.Debug("alert suppressed",
			"fingerprint", a.Fingerprint,
			"remaining", remaining,
		)
		return
	}

	d.invoke(a)
}

// invoke runs the response script as a detached child process. It does
// not block the dispatcher strand on the child's lifetime: Start returns
// once the process has forked/execed, and a background goroutine waits
// for it and logs the outcome.
func (d *Dispatcher) invoke(a threat.Alert) {
	cmd := exec.Command(d.scriptPath, a.Display)

	if err := cmd.Start(); err != nil {
		d.mgr.Error("threat alert command failed to start",
			"fingerprint", a.Fingerprint,
			"err", err,
		)
		return
	}

	go func() {
		err := cmd.Wait()
		if err != nil {
			d.mgr.Warn("threat alert command exited with error",
				"fingerprint", a.Fingerprint,
				"display", a.Display,
				"err", err,
			)
			return
		}
		d.mgr.Debug("threat alert command completed",
			"fingerprint", a.Fingerprint,
		)
	}()
}

func (d *Dispatcher) sweep(w *mgr.WorkerCtx) error {
	d.strand.Post(func() {
		d.cache.sweep(time.Now())
	})
	return nil
}
