package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInstantSubUsesMonotonic(t *testing.T) {
	start := Now()
	time.Sleep(time.Millisecond)
	end := Now()
	assert.True(t, end.Sub(start) > 0)
}

func TestFixedClockNeverAdvances(t *testing.T) {
	c := Fixed(Now())
	a := c.Now()
	b := c.Now()
	assert.Equal(t, a.Wall(), b.Wall())
}

func TestSequenceClockAdvancesByStep(t *testing.T) {
	start := time.Unix(1000, 0)
	c := Sequence(start, time.Second)
	a := c.Now()
	b := c.Now()
	assert.Equal(t, time.Second, b.Wall().Sub(a.Wall()))
}

func TestZeroInstant(t *testing.T) {
	var i Instant
	assert.True(t, i.IsZero())
}
