package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkwrap/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState

	device *VulkanDevice
	pool   vk.CommandPool
}

func NewVulkanCommandBuffer(device *VulkanDevice, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	err := device.locks.SafeCall(CommandPoolManagement, func() error {
		if res := vk.AllocateCommandBuffers(device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
			return resultError("vkAllocateCommandBuffers", res, core.ErrResourceCreation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &VulkanCommandBuffer{
		Handle: handles[0],
		State:  COMMAND_BUFFER_STATE_READY,
		device: device,
		pool:   pool,
	}, nil
}

// AllocateFrameCommandBuffers allocates one primary command buffer per frame slot
// from the graphics pool.
func AllocateFrameCommandBuffers(device *VulkanDevice, count int) ([]*VulkanCommandBuffer, error) {
	buffers := make([]*VulkanCommandBuffer, 0, count)
	for i := 0; i < count; i++ {
		cb, err := NewVulkanCommandBuffer(device, device.GraphicsCommandPool, true)
		if err != nil {
			for _, allocated := range buffers {
				allocated.Free()
			}
			return nil, err
		}
		buffers = append(buffers, cb)
	}
	core.LogDebug("Vulkan command buffers created.")
	return buffers, nil
}

func (v *VulkanCommandBuffer) Free() {
	if v.Handle == nil {
		return
	}
	_ = v.device.locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(v.device.LogicalDevice, v.pool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

// Destroy frees the command buffer back to its pool.
func (v *VulkanCommandBuffer) Destroy() {
	v.Free()
}

func (v *VulkanCommandBuffer) BeginRecording(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, &beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res, core.ErrUnknown)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

// Begin starts recording a regular per-frame command buffer.
func (v *VulkanCommandBuffer) Begin() error {
	return v.BeginRecording(false, false, false)
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res, core.ErrUnknown)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

// Reset returns the command buffer to the initial state. The pool was created
// with the reset-command-buffer flag.
func (v *VulkanCommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(v.Handle, 0); res != vk.Success {
		return resultError("vkResetCommandBuffer", res, core.ErrUnknown)
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

// SetViewportAndScissor records the dynamic viewport and scissor state.
func (v *VulkanCommandBuffer) SetViewportAndScissor(viewport vk.Viewport, scissor vk.Rect2D) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{scissor})
}

// AllocateAndBeginSingleUse allocates a primary command buffer and begins it
// for one-time submission.
func AllocateAndBeginSingleUse(device *VulkanDevice, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(device, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.BeginRecording(true, false, false); err != nil {
		cb.Free()
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits to queue, waits for it to go idle and
// frees the command buffer.
func (v *VulkanCommandBuffer) EndSingleUse(queue vk.Queue, queueFamilyIndex uint32) error {
	defer v.Free()

	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}

	return v.device.locks.SafeQueueCall(queueFamilyIndex, func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, nil); res != vk.Success {
			return resultError("vkQueueSubmit (single use)", res, core.ErrUnknown)
		}
		if res := vk.QueueWaitIdle(queue); res != vk.Success {
			return resultError("vkQueueWaitIdle", res, core.ErrUnknown)
		}
		return nil
	})
}

// RunSingleUse records fn into a one-shot command buffer on the graphics queue
// and waits for it to complete.
func RunSingleUse(device *VulkanDevice, fn func(cb *VulkanCommandBuffer)) error {
	cb, err := AllocateAndBeginSingleUse(device, device.GraphicsCommandPool)
	if err != nil {
		return fmt.Errorf("one-shot command buffer: %w", err)
	}
	fn(cb)
	return cb.EndSingleUse(device.GraphicsQueue, uint32(device.GraphicsQueueIndex))
}
