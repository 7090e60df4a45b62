package alertdispatch

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/threat"
)

// writeRecordingScript installs a script in dataDir that appends every
// invocation's argument to a marker file, so tests can count invocations
// without depending on an external threat_alert.sh.
func writeRecordingScript(t *testing.T, dataDir, markerPath string) {
	t.Helper()
	body := "#!/bin/sh\necho \"$1\" >> " + markerPath + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, scriptName), []byte(body), 0o750))
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	if len(data) == 0 {
		return 0
	}
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

func TestDefaultScriptIsCreatedWhenAbsent(t *testing.T) {
	dataDir := t.TempDir()

	d := New(dataDir)
	m := mgr.New("dispatcher-test")
	require.NoError(t, d.Start(m))
	defer m.Cancel()

	data, err := os.ReadFile(filepath.Join(dataDir, scriptName))
	require.NoError(t, err)
	assert.Equal(t, defaultScript, string(data))
}

func TestDuplicateFingerprintFiresOnce(t *testing.T) {
	dataDir := t.TempDir()
	marker := filepath.Join(dataDir, "marker.log")
	writeRecordingScript(t, dataDir, marker)

	d := New(dataDir)
	m := mgr.New("dispatcher-test")
	require.NoError(t, d.Start(m))
	defer m.Cancel()

	th := threat.New(threat.TCP, net.ParseIP("203.0.113.5"), 1234, []byte("FOO"), threat.L3)
	d.OnThreat(th)
	d.OnThreat(th)

	require.Eventually(t, func() bool {
		return countLines(t, marker) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// Give any second (incorrect) invocation a chance to land before
	// asserting it never does.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, countLines(t, marker))
}

func TestDistinctFingerprintsEachFire(t *testing.T) {
	dataDir := t.TempDir()
	marker := filepath.Join(dataDir, "marker.log")
	writeRecordingScript(t, dataDir, marker)

	d := New(dataDir)
	m := mgr.New("dispatcher-test")
	require.NoError(t, d.Start(m))
	defer m.Cancel()

	d.OnThreat(threat.New(threat.TCP, net.ParseIP("203.0.113.5"), 1234, []byte("FOO"), threat.L3))
	d.OnThreat(threat.New(threat.TCP, net.ParseIP("198.51.100.9"), 4321, []byte("FOO"), threat.L3))

	require.Eventually(t, func() bool {
		return countLines(t, marker) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
