package vulkan

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/vkwrap/engine/core"
)

type LockGroup string

const (
	CommandPoolManagement LockGroup = "command_pool_management"
	SwapchainManagement   LockGroup = "swapchain_management"
)

// VulkanLockPool hands out one mutex per lock group and one per queue family.
// Vulkan requires external synchronization on queues and pools.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to both maps

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) groupLock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.locks[group]; !exists {
		vs.locks[group] = &sync.Mutex{}
	}
	return vs.locks[group]
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.groupLock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

// SetQueueFamily registers a queue family so SafeQueueCall can guard it.
func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
}

func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	vs.mu.Lock()
	l, ok := vs.queueMutexes[queueFamilyIndex]
	vs.mu.Unlock()
	if !ok {
		err := fmt.Errorf("queue family %d was never registered: %w", queueFamilyIndex, core.ErrIndexOutOfRange)
		core.LogError("%s", err)
		return err
	}

	l.Lock()
	defer l.Unlock()

	return fn()
}
