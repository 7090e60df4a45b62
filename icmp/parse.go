package icmp

import (
	"encoding/binary"
	"errors"
	"net"
)

// ErrParseFailed is returned for any datagram that does not decode as a
// well-formed IPv4+ICMPv4 packet.
var ErrParseFailed = errors.New("icmp: parse failed")

// ICMP message types this receiver acts on.
const (
	typeEchoReply   = 0
	typeEchoRequest = 8
)

// Packet is a parsed IPv4+ICMPv4 datagram.
type Packet struct {
	Source      net.IP
	Destination net.IP
	Type        byte
	Code        byte
	Checksum    uint16
	ID          uint16
	Sequence    uint16
	Payload     []byte
}

// IsEcho reports whether the packet is an echo request or reply, the
// only ICMP messages this receiver treats as a threat.
func (p Packet) IsEcho() bool {
	return p.Type == typeEchoRequest || p.Type == typeEchoReply
}

// Parse decodes raw as an IPv4 header immediately followed by an ICMPv4
// header and payload, per the wire layout a raw ICMP socket delivers.
func Parse(raw []byte) (Packet, error) {
	if len(raw) < 20 {
		return Packet{}, ErrParseFailed
	}

	version := raw[0] >> 4
	if version != 4 {
		return Packet{}, ErrParseFailed
	}

	headerLen := int(raw[0]&0x0F) * 4
	optionsLen := headerLen - 20
	if optionsLen < 0 || optionsLen > 40 {
		return Packet{}, ErrParseFailed
	}
	if len(raw) < headerLen+8 {
		return Packet{}, ErrParseFailed
	}

	src := net.IPv4(raw[12], raw[13], raw[14], raw[15])
	dst := net.IPv4(raw[16], raw[17], raw[18], raw[19])

	icmpHdr := raw[headerLen:]
	p := Packet{
		Source:      src,
		Destination: dst,
		Type:        icmpHdr[0],
		Code:        icmpHdr[1],
		Checksum:    binary.BigEndian.Uint16(icmpHdr[2:4]),
		ID:          binary.BigEndian.Uint16(icmpHdr[4:6]),
		Sequence:    binary.BigEndian.Uint16(icmpHdr[6:8]),
		Payload:     raw[headerLen+8:],
	}
	return p, nil
}
