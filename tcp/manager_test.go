package tcp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensentinel/sentinel/service/mgr"
	"github.com/opensentinel/sentinel/strand"
	"github.com/opensentinel/sentinel/threat"
	"github.com/opensentinel/sentinel/transport"
)

func TestManagerEmitsAcceptAndFirstReadThreats(t *testing.T) {
	// Exercise onAccept directly against a loopback pipe-backed transport
	// rather than walking the full port range, which would require
	// binding thousands of sockets in a unit test.
	received := make(chan threat.Threat, 4)
	mg := New(func(th threat.Threat) { received <- th })

	m := mgr.New("tcp-manager-test")
	defer m.Cancel()
	mg.strand = strand.New(m, "tcp-manager-test-strand")

	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	tr := transport.New(m, server)
	mg.onAccept(tr)
	tr.Start()

	select {
	case th := <-received:
		assert.Equal(t, threat.TCP, th.Protocol)
		assert.Equal(t, threat.L0, th.Level)
		assert.Empty(t, th.Buffer)
	case <-time.After(time.Second):
		t.Fatal("accept threat not emitted")
	}

	_, err := client.Write([]byte("FOO"))
	require.NoError(t, err)

	select {
	case th := <-received:
		assert.Equal(t, threat.TCP, th.Protocol)
		assert.Equal(t, []byte("FOO"), th.Buffer)
	case <-time.After(time.Second):
		t.Fatal("first-read threat not emitted")
	}

	// A second write must not produce a second threat: only the first
	// read is reported.
	_, err = client.Write([]byte("BAR"))
	require.NoError(t, err)
	select {
	case th := <-received:
		t.Fatalf("unexpected second threat: %+v", th)
	case <-time.After(200 * time.Millisecond):
	}
}
