package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkwrap/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool

	device *VulkanDevice
}

func NewFence(device *VulkanDevice, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		IsSignaled: createSignaled,
		device:     device,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(device.LogicalDevice, &fenceCreateInfo, device.allocator, &pFence); res != vk.Success {
		return nil, resultError("vkCreateFence", res, core.ErrResourceCreation)
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != nil {
		vk.DestroyFence(vf.device.LogicalDevice, vf.Handle, vf.device.allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// Wait blocks with no timeout until the fence is signaled.
func (vf *VulkanFence) Wait() error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(vf.device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, math.MaxUint64)
	if result != vk.Success {
		return resultError("vkWaitForFences", result, core.ErrUnknown)
	}
	vf.IsSignaled = true
	return nil
}

func (vf *VulkanFence) Reset() error {
	if !vf.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(vf.device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		return resultError("vkResetFences", res, core.ErrUnknown)
	}
	vf.IsSignaled = false
	return nil
}

// Signaled queries the fence status without blocking.
func (vf *VulkanFence) Signaled() bool {
	if vf.IsSignaled {
		return true
	}
	if vk.GetFenceStatus(vf.device.LogicalDevice, vf.Handle) == vk.Success {
		vf.IsSignaled = true
	}
	return vf.IsSignaled
}
