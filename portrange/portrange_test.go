package portrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalkCoversEveryPortExactlyOnce(t *testing.T) {
	seen := make(map[uint16]int)
	Walk(func(port uint16) bool {
		seen[port]++
		return true
	})

	assert.Len(t, seen, Count())
	for port, n := range seen {
		assert.Equal(t, 1, n, "port %d visited more than once", port)
	}

	// The NetBIOS gaps are deliberately excluded.
	for _, gap := range []uint16{67, 68, 137, 138, 139} {
		_, ok := seen[gap]
		assert.False(t, ok, "gap port %d should not be walked", gap)
	}
}

func TestWalkStopsWhenCallbackReturnsFalse(t *testing.T) {
	count := 0
	Walk(func(port uint16) bool {
		count++
		return count < 5
	})
	assert.Equal(t, 5, count)
}
