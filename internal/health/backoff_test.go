package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectBackOffSequence(t *testing.T) {
	b := NewReconnectBackOff(30*time.Second, 3, 300*time.Second)

	want := []time.Duration{30, 30, 30, 60, 120, 240, 300, 300, 300}
	for i, w := range want {
		assert.Equal(t, w*time.Second, b.NextBackOff(), "failure %d", i+1)
	}

	b.Reset()
	assert.Equal(t, 30*time.Second, b.NextBackOff())
}

func TestReconnectBackOffInterval(t *testing.T) {
	b := NewReconnectBackOff(time.Second, 0, time.Hour)

	assert.Equal(t, time.Second, b.Interval(0))
	assert.Equal(t, 2*time.Second, b.Interval(1))
	assert.Equal(t, 8*time.Second, b.Interval(3))
	// multiplier caps at 10x before the ceiling applies
	assert.Equal(t, 10*time.Second, b.Interval(4))
	assert.Equal(t, 10*time.Second, b.Interval(1000))
}

func TestReconnectBackOffDefaults(t *testing.T) {
	b := NewReconnectBackOff(0, -1, 0)
	assert.Equal(t, DefaultCheckInterval, b.Base)
	assert.Equal(t, DefaultMaxConsecutiveFailures, b.Threshold)
	assert.Equal(t, DefaultMaxBackoff, b.Ceiling)
}
