package udp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/strand"
	"github.com/opensentinel/sentinel/threat"
)

func TestManagerEmitsL3ThreatPerDatagram(t *testing.T) {
	received := make(chan threat.Threat, 1)
	mg := New(func(th threat.Threat) { received <- th })

	m := mgr.New("udp-manager-test")
	defer m.Cancel()
	mg.strand = strand.New(m, "udp-manager-test-strand")

	mg.onReceive(net.ParseIP("203.0.113.9"), 4444, []byte("hello"))

	select {
	case th := <-received:
		assert.Equal(t, threat.UDP, th.Protocol)
		assert.Equal(t, threat.L3, th.Level)
		assert.Equal(t, []byte("hello"), th.Buffer)
	case <-time.After(time.Second):
		t.Fatal("threat not emitted")
	}
}
