package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkwrap/engine/core"
)

type VulkanSemaphore struct {
	Handle vk.Semaphore

	device *VulkanDevice
}

// NewSemaphore creates a binary semaphore in the unsignaled state.
func NewSemaphore(device *VulkanDevice) (*VulkanSemaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if res := vk.CreateSemaphore(device.LogicalDevice, &semaphoreCreateInfo, device.allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateSemaphore", res, core.ErrResourceCreation)
	}
	return &VulkanSemaphore{Handle: handle, device: device}, nil
}

func (vs *VulkanSemaphore) Destroy() {
	if vs.Handle != nil {
		vk.DestroySemaphore(vs.device.LogicalDevice, vs.Handle, vs.device.allocator)
		vs.Handle = nil
	}
}
