package icmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumIsDeterministic(t *testing.T) {
	a := checksum(8, 0, 1, 42, []byte("ping"))
	b := checksum(8, 0, 1, 42, []byte("ping"))
	assert.Equal(t, a, b)
}

func TestChecksumChangesWithPayload(t *testing.T) {
	a := checksum(8, 0, 1, 42, []byte("ping"))
	b := checksum(8, 0, 1, 42, []byte("pong"))
	assert.NotEqual(t, a, b)
}

func TestChecksumHandlesOddLengthPayload(t *testing.T) {
	// Must not panic on an odd-length payload; the final byte is
	// zero-padded per the spec.
	assert.NotPanics(t, func() {
		checksum(8, 0, 1, 1, []byte("odd"))
	})
}
