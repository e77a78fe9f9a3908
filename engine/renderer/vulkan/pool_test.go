package vulkan

import (
	"errors"
	"sync"
	"testing"

	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/stretchr/testify/assert"
)

func TestLockPoolSafeCall(t *testing.T) {
	pool := NewVulkanLockPool()
	want := errors.New("boom")
	assert.Equal(t, want, pool.SafeCall(SwapchainManagement, func() error { return want }))

	// Calls in the same group are serialized.
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeCall(CommandPoolManagement, func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestLockPoolQueueCall(t *testing.T) {
	pool := NewVulkanLockPool()

	err := pool.SafeQueueCall(1, func() error { return nil })
	assert.ErrorIs(t, err, core.ErrIndexOutOfRange)

	pool.SetQueueFamily(1)
	called := false
	err = pool.SafeQueueCall(1, func() error {
		called = true
		// Another group must not block while the queue is held.
		return pool.SafeCall(SwapchainManagement, func() error { return nil })
	})
	assert.NoError(t, err)
	assert.True(t, called)
}
