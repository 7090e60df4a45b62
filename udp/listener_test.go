package udp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensentinel/sentinel/service/mgr"
)

func TestListenerDeliversDatagrams(t *testing.T) {
	m := mgr.New("udp-listener-test")
	defer m.Cancel()

	l := NewListener(m, 18271)
	received := make(chan []byte, 1)
	l.SetOnReceive(func(_ net.IP, _ uint16, payload []byte) {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		received <- cp
	})
	require.NoError(t, l.Open())
	defer l.Close()

	conn, err := net.Dial("udp4", "127.0.0.1:18271")
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, []byte("hello"), got)
	case <-time.After(time.Second):
		t.Fatal("datagram not delivered")
	}
}

func TestListenerCloseIsIdempotent(t *testing.T) {
	m := mgr.New("udp-listener-test")
	defer m.Cancel()

	l := NewListener(m, 18272)
	require.NoError(t, l.Open())

	l.Close()
	l.Close()

	assert.True(t, l.IsClosed())
}
