package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	c := &Clock{now: func() time.Time { return current }}

	c.Update()
	assert.Zero(t, c.Elapsed(), "non-started clock must not advance")

	c.Start()
	current = base.Add(1500 * time.Millisecond)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)

	c.Stop()
	current = base.Add(10 * time.Second)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9, "stopped clock keeps its elapsed time")

	c.Start()
	assert.Zero(t, c.Elapsed())
}
