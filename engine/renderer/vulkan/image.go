package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkwrap/engine/core"
)

// VulkanImage owns an image, its memory and optionally a view.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format

	context *VulkanContext
}

func ImageCreate(
	context *VulkanContext,
	imageType vk.ImageType,
	width, height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspectFlags vk.ImageAspectFlags,
) (*VulkanImage, error) {
	device := context.Device
	image := &VulkanImage{
		Width:   width,
		Height:  height,
		Format:  format,
		context: context,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if res := vk.CreateImage(device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, resultError("vkCreateImage", res, core.ErrResourceCreation)
	}
	image.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device.LogicalDevice, image.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		image.Destroy()
		err := fmt.Errorf("required memory type not found, image not valid: %w", core.ErrResourceCreation)
		core.LogError("%s", err)
		return nil, err
	}

	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(device.LogicalDevice, &memoryAllocateInfo, context.Allocator, &memory); res != vk.Success {
		image.Destroy()
		return nil, resultError("vkAllocateMemory", res, core.ErrResourceCreation)
	}
	image.Memory = memory

	if res := vk.BindImageMemory(device.LogicalDevice, image.Handle, image.Memory, 0); res != vk.Success {
		image.Destroy()
		return nil, resultError("vkBindImageMemory", res, core.ErrResourceCreation)
	}

	if createView {
		if err := image.ViewCreate(format, viewAspectFlags); err != nil {
			image.Destroy()
			return nil, err
		}
	}
	return image, nil
}

func (vi *VulkanImage) ViewCreate(format vk.Format, aspectFlags vk.ImageAspectFlags) error {
	view, err := createImageView(vi.context, vi.Handle, format, aspectFlags)
	if err != nil {
		return err
	}
	vi.View = view
	return nil
}

func createImageView(context *VulkanContext, image vk.Image, format vk.Format, aspectFlags vk.ImageAspectFlags) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		return nil, resultError("vkCreateImageView", res, core.ErrResourceCreation)
	}
	return view, nil
}

// TransitionLayout records a layout transition barrier into cb. Only the
// transitions the renderer needs are supported.
func (vi *VulkanImage) TransitionLayout(cb *VulkanCommandBuffer, oldLayout, newLayout vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlagBits
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutDepthStencilAttachmentOptimal:
		aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if hasStencilComponent(vi.Format) {
			aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
		barrier.SubresourceRange.AspectMask = aspect
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
		srcStage = vk.PipelineStageTopOfPipeBit
		dstStage = vk.PipelineStageEarlyFragmentTestsBit
	default:
		err := fmt.Errorf("unsupported layout transition %d -> %d: %w", oldLayout, newLayout, core.ErrUnknown)
		core.LogError("%s", err)
		return err
	}

	vk.CmdPipelineBarrier(
		cb.Handle,
		vk.PipelineStageFlags(srcStage),
		vk.PipelineStageFlags(dstStage),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier},
	)
	return nil
}

func hasStencilComponent(format vk.Format) bool {
	return format == vk.FormatD32SfloatS8Uint || format == vk.FormatD24UnormS8Uint
}

// Destroy releases the view, the memory and the image. It is safe to call more
// than once.
func (vi *VulkanImage) Destroy() {
	device := vi.context.Device.LogicalDevice
	if vi.View != nil {
		vk.DestroyImageView(device, vi.View, vi.context.Allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(device, vi.Memory, vi.context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(device, vi.Handle, vi.context.Allocator)
		vi.Handle = nil
	}
}
