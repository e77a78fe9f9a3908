package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/spaghettifunk/vkwrap/engine/renderer/frame"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Width       uint32
	Height      uint32

	context *VulkanContext
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Width:       width,
		Height:      height,
		context:     context,
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	var pFramebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &pFramebuffer); res != vk.Success {
		return nil, resultError("vkCreateFramebuffer", res, core.ErrResourceCreation)
	}
	outFramebuffer.Handle = pFramebuffer
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy() {
	if vfb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(vfb.context.Device.LogicalDevice, vfb.Handle, vfb.context.Allocator)
		vfb.Handle = vk.NullFramebuffer
	}
	vfb.Attachments = nil
}

// CreateSwapchainFramebuffers builds one framebuffer per swapchain image,
// pairing its colour view with the shared depth view, and queues each one on
// queue so it goes away with the swapchain.
func CreateSwapchainFramebuffers(context *VulkanContext, swapchain *VulkanSwapchain, renderpass *VulkanRenderpass, queue *frame.DeletionQueue) ([]*VulkanFramebuffer, error) {
	if swapchain.DepthAttachment == nil {
		err := fmt.Errorf("swapchain %s has no depth attachment: %w", swapchain.Generation, core.ErrResourceCreation)
		core.LogError("%s", err)
		return nil, err
	}

	framebuffers := make([]*VulkanFramebuffer, 0, len(swapchain.Views))
	for i, view := range swapchain.Views {
		fb, err := FramebufferCreate(
			context,
			renderpass,
			swapchain.SwapExtent.Width,
			swapchain.SwapExtent.Height,
			[]vk.ImageView{view, swapchain.DepthAttachment.View})
		if err != nil {
			return nil, err
		}
		queue.Push(fmt.Sprintf("framebuffer[%d]", i), fb)
		framebuffers = append(framebuffers, fb)
	}
	return framebuffers, nil
}
