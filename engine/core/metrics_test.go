package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsAverageAndFPS(t *testing.T) {
	m := NewMetrics()
	assert.Zero(t, m.FPS())

	// 61 frames of 1/60s always cross the one second boundary once.
	for i := 0; i < 61; i++ {
		m.Update(1.0 / 60.0)
	}
	fps, avg := m.Frame()
	assert.InDelta(t, 60.5, fps, 0.5)
	assert.InDelta(t, 1000.0/60.0, avg, 1e-6)
}

func TestMetricsRollingWindow(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)

	// A full window of slower frames replaces the old samples entirely.
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.020)
	}
	assert.InDelta(t, 20.0, m.FrameTime(), 1e-9)
}
