package icmp

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildEchoRequest assembles a full IPv4+ICMPv4 echo-request datagram,
// the same wire layout a raw ICMP socket delivers.
func buildEchoRequest(t *testing.T, src, dst net.IP, seq uint16, payload []byte) []byte {
	t.Helper()

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    src,
		DstIP:    dst,
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       1,
		Seq:      seq,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, icmp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func TestParseEchoRequestRoundTrip(t *testing.T) {
	src := net.ParseIP("198.51.100.7").To4()
	dst := net.ParseIP("203.0.113.1").To4()
	raw := buildEchoRequest(t, src, dst, 42, []byte("ping"))

	pkt, err := Parse(raw)
	require.NoError(t, err)

	assert.True(t, pkt.Source.Equal(src))
	assert.Equal(t, byte(typeEchoRequest), pkt.Type)
	assert.True(t, pkt.IsEcho())
	assert.Equal(t, uint16(42), pkt.Sequence)
	assert.Equal(t, []byte("ping"), pkt.Payload)
}

func TestParseRejectsShortPacket(t *testing.T) {
	_, err := Parse([]byte{0x45, 0x00})
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestParseRejectsNonIPv4(t *testing.T) {
	raw := buildEchoRequest(t, net.ParseIP("198.51.100.7").To4(), net.ParseIP("203.0.113.1").To4(), 1, nil)
	raw[0] = 0x65 // version 6 in the top nibble
	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrParseFailed)
}
