package alertdispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeenFiresOnlyOnce(t *testing.T) {
	c := newCache()
	now := time.Now()

	assert.True(t, c.seen("fp1", now))
	assert.False(t, c.seen("fp1", now.Add(time.Second)))
	assert.Equal(t, 1, c.size())
}

func TestSeenDoesNotResetOnReobservation(t *testing.T) {
	c := newCache()
	first := time.Now()

	assert.True(t, c.seen("fp1", first))
	assert.False(t, c.seen("fp1", first.Add(30*time.Second)))

	// Original timestamp stands: 31s after "first" the entry is 31s old,
	// not reset to 0s old by the second observation.
	remaining := c.remainingSuppression("fp1", first.Add(31*time.Second))
	assert.Equal(t, ttl-31*time.Second, remaining)
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c := newCache()
	now := time.Now()

	c.seen("old", now.Add(-2*time.Minute))
	c.seen("fresh", now)

	c.sweep(now)

	assert.Equal(t, 1, c.size())
	assert.Equal(t, time.Duration(0), c.remainingSuppression("old", now))
}

func TestRemainingSuppressionForUnknownFingerprintIsZero(t *testing.T) {
	c := newCache()
	assert.Equal(t, time.Duration(0), c.remainingSuppression("nope", time.Now()))
}
