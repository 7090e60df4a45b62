package threat

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// displayBufferLimit truncates the hex dump in Alert.Display, independent
// of the (larger) cap already applied to Threat.Buffer.
const displayBufferLimit = 1536

// Alert is a Threat selected for external notification by the dispatcher.
type Alert struct {
	Address     string
	Port        uint16
	Protocol    Protocol
	Level       Level
	HasPayload  bool
	Buffer      []byte
	Fingerprint string
	Display     string
}

// NewAlert derives an Alert from a classified Threat.
func NewAlert(t Threat) Alert {
	hasPayload := len(t.Buffer) > 0
	addr := t.Address.String()

	a := Alert{
		Address:    addr,
		Port:       t.Port,
		Protocol:   t.Protocol,
		Level:      t.Level,
		HasPayload: hasPayload,
		Buffer:     t.Buffer,
	}
	a.Fingerprint = fmt.Sprintf("%s:%s:%s:%t", addr, t.Protocol, t.Level, hasPayload)
	a.Display = fmt.Sprintf("%s:%d,%s,%s,%s%s",
		addr, t.Port, t.Protocol, t.Level, httpTag(t.Buffer), hexSample(t.Buffer))
	return a
}

// httpTag returns the HTTP method tag for the display string, or "" if
// sample is not a recognizable HTTP request.
func httpTag(sample []byte) string {
	if !bytes.Contains(sample, []byte("HTTP/")) {
		return ""
	}
	switch {
	case bytes.Contains(sample, []byte("GET")):
		return "HTTP_GET "
	case bytes.Contains(sample, []byte("POST")):
		return "HTTP_POST "
	case bytes.Contains(sample, []byte("HEAD")):
		return "HTTP_HEAD "
	default:
		return ""
	}
}

func hexSample(sample []byte) string {
	if len(sample) > displayBufferLimit {
		sample = sample[:displayBufferLimit]
	}
	return hex.EncodeToString(sample)
}
