package classify

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/threat"
)

func startClassifier(t *testing.T, fp FingerprintList) (*Classifier, chan threat.Threat) {
	t.Helper()

	forwarded := make(chan threat.Threat, 8)
	c := New(fp, func(th threat.Threat) {
		forwarded <- th
	})

	m := mgr.New("classifier-test")
	require.NoError(t, c.Start(m))
	t.Cleanup(func() {
		m.Cancel()
	})
	return c, forwarded
}

func expectForwarded(t *testing.T, forwarded chan threat.Threat) threat.Threat {
	t.Helper()
	select {
	case got := <-forwarded:
		return got
	case <-time.After(time.Second):
		t.Fatal("threat not forwarded")
		return threat.Threat{}
	}
}

func TestEmptyBufferAtL0BecomesL1(t *testing.T) {
	c, forwarded := startClassifier(t, DefaultFingerprints())

	c.Submit(threat.New(threat.TCP, net.ParseIP("203.0.113.5"), 1234, nil, threat.L0))

	got := expectForwarded(t, forwarded)
	assert.Equal(t, threat.L1, got.Level)
}

func TestHostileFingerprintBecomesL3(t *testing.T) {
	c, forwarded := startClassifier(t, DefaultFingerprints())

	c.Submit(threat.New(threat.TCP, net.ParseIP("203.0.113.5"), 1234, []byte("FOO"), threat.L0))

	got := expectForwarded(t, forwarded)
	assert.Equal(t, threat.L3, got.Level)
	assert.True(t, got.Level > threat.L0)
}

func TestNonHostilePayloadBecomesL2(t *testing.T) {
	c, forwarded := startClassifier(t, DefaultFingerprints())

	c.Submit(threat.New(threat.TCP, net.ParseIP("203.0.113.5"), 1234, []byte("hello"), threat.L0))

	got := expectForwarded(t, forwarded)
	assert.Equal(t, threat.L2, got.Level)
}

func TestUpstreamLevelIsPreservedIfHigher(t *testing.T) {
	c, forwarded := startClassifier(t, DefaultFingerprints())

	c.Submit(threat.New(threat.UDP, net.ParseIP("203.0.113.5"), 69, []byte("hello"), threat.L3))

	got := expectForwarded(t, forwarded)
	assert.Equal(t, threat.L3, got.Level)
}

func TestHostileMatchOutranksPlainPayload(t *testing.T) {
	c, forwarded := startClassifier(t, NewStaticFingerprints("evil"))

	c.Submit(threat.New(threat.TCP, net.ParseIP("203.0.113.5"), 1234, []byte("this is evil"), threat.L0))

	got := expectForwarded(t, forwarded)
	assert.Equal(t, threat.L3, got.Level)
}

func TestReplacingFingerprintListChangesClassification(t *testing.T) {
	fp := NewStaticFingerprints("BAR")
	c, forwarded := startClassifier(t, fp)

	c.Submit(threat.New(threat.TCP, net.ParseIP("203.0.113.5"), 1234, []byte("FOO"), threat.L0))
	got := expectForwarded(t, forwarded)
	assert.Equal(t, threat.L2, got.Level, "FOO should not match the BAR-only list")

	fp.Set("FOO")
	c.Submit(threat.New(threat.TCP, net.ParseIP("203.0.113.5"), 1234, []byte("FOO"), threat.L0))
	got = expectForwarded(t, forwarded)
	assert.Equal(t, threat.L3, got.Level, "FOO should match after Set")
}
