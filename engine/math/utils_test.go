package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(5, 0, 10))
	assert.Equal(t, 0, Clamp(-3, 0, 10))
	assert.Equal(t, 10, Clamp(42, 0, 10))
	assert.Equal(t, uint32(4096), Clamp(uint32(10000), 1, 4096))
	assert.Equal(t, float32(1), Clamp(float32(1.5), 0, 1))
}
