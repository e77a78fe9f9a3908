package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeletionQueueFlushEmpty(t *testing.T) {
	q := NewDeletionQueue("surface")
	assert.Equal(t, 0, q.Flush())
	assert.Equal(t, 0, q.Len())
}

func TestDeletionQueueFlushReverseOrder(t *testing.T) {
	q := NewDeletionQueue("device")
	var order []int
	calls := make([]int, 5)
	for i := 0; i < 5; i++ {
		i := i
		q.PushFunc("action", func() {
			calls[i]++
			order = append(order, i)
		})
	}
	assert.Equal(t, 5, q.Len())

	assert.Equal(t, 5, q.Flush())
	assert.Equal(t, []int{4, 3, 2, 1, 0}, order)
	assert.Equal(t, []int{1, 1, 1, 1, 1}, calls)
	assert.Equal(t, 0, q.Len())

	assert.Equal(t, 0, q.Flush())
	assert.Equal(t, []int{1, 1, 1, 1, 1}, calls)
}

func TestDeletionQueueReusableAfterFlush(t *testing.T) {
	q := NewDeletionQueue("surface")
	s := &fakeSemaphore{}
	q.Push("semaphore", s)
	q.Flush()
	q.Push("semaphore", s)
	q.Flush()
	assert.Equal(t, 2, s.destroyed)
}

func TestDeletionQueueIgnoresNil(t *testing.T) {
	q := NewDeletionQueue("device")
	q.Push("nothing", nil)
	q.PushFunc("nothing", nil)
	assert.Equal(t, 0, q.Len())
}

func TestTeardownFlushesSurfaceTierFirst(t *testing.T) {
	td := NewTeardown()
	var order []string
	td.Device.PushFunc("device", func() { order = append(order, "device") })
	td.Surface.PushFunc("swapchain", func() { order = append(order, "swapchain") })
	td.Surface.PushFunc("framebuffers", func() { order = append(order, "framebuffers") })

	td.Flush()

	assert.Equal(t, []string{"framebuffers", "swapchain", "device"}, order)
}
