package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/spaghettifunk/vkwrap/engine/renderer/frame"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format

	allocator *vk.AllocationCallbacks
	locks     *VulkanLockPool
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	// Prefer a discrete GPU when more than one device qualifies.
	PreferDiscreteGPU bool
}

// Queue family indices, -1 when the family was not found.
type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

func (qi VulkanPhysicalDeviceQueueFamilyInfo) satisfies(req *VulkanPhysicalDeviceRequirements) bool {
	return (!req.Graphics || qi.GraphicsFamilyIndex >= 0) &&
		(!req.Present || qi.PresentFamilyIndex >= 0)
}

func DeviceCreate(context *VulkanContext) error {
	if context.Locks == nil {
		context.Locks = NewVulkanLockPool()
	}
	context.Device = &VulkanDevice{
		GraphicsQueueIndex: -1,
		PresentQueueIndex:  -1,
		allocator:          context.Allocator,
		locks:              context.Locks,
	}
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}
	device := context.Device

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(device.GraphicsQueueIndex)}
	if device.PresentQueueIndex != device.GraphicsQueueIndex {
		indices = append(indices, uint32(device.PresentQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(device.PhysicalDevice)
	if err != nil {
		return err
	}
	if _, ok := available[portabilitySubsetExtension]; ok {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
		return resultError("vkCreateDevice", res, core.ErrResourceCreation)
	}
	device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.GraphicsQueueIndex), 0, &queue)
	device.GraphicsQueue = queue
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.PresentQueueIndex), 0, &queue)
	device.PresentQueue = queue
	for _, index := range indices {
		context.Locks.SetQueueFamily(index)
	}
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		return resultError("vkCreateCommandPool", res, core.ErrResourceCreation)
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !DeviceDetectDepthFormat(device) {
		err := fmt.Errorf("no supported depth format: %w", core.ErrResourceCreation)
		core.LogError("%s", err)
		return err
	}
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}
	device.GraphicsQueue = nil
	device.PresentQueue = nil

	if device.GraphicsCommandPool != nil {
		core.LogDebug("Destroying command pools...")
		vk.DestroyCommandPool(device.LogicalDevice, device.GraphicsCommandPool, context.Allocator)
		device.GraphicsCommandPool = nil
	}

	if device.LogicalDevice != nil {
		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}
	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
}

// WaitIdle blocks until every queue of the device is idle.
func (vd *VulkanDevice) WaitIdle() error {
	if res := vk.DeviceWaitIdle(vd.LogicalDevice); res != vk.Success {
		return resultError("vkDeviceWaitIdle", res, core.ErrUnknown)
	}
	return nil
}

// Submit queues cmd on the graphics queue. It waits on wait at the colour
// attachment output stage and signals signal and fence on completion.
func (vd *VulkanDevice) Submit(cmd frame.CommandBuffer, wait, signal frame.Semaphore, fence frame.Fence) error {
	commandBuffer, ok := cmd.(*VulkanCommandBuffer)
	if !ok {
		return fmt.Errorf("submit: unexpected command buffer %T: %w", cmd, core.ErrUnknown)
	}
	waitSemaphore, ok := wait.(*VulkanSemaphore)
	if !ok {
		return fmt.Errorf("submit: unexpected semaphore %T: %w", wait, core.ErrUnknown)
	}
	signalSemaphore, ok := signal.(*VulkanSemaphore)
	if !ok {
		return fmt.Errorf("submit: unexpected semaphore %T: %w", signal, core.ErrUnknown)
	}
	inFlight, ok := fence.(*VulkanFence)
	if !ok {
		return fmt.Errorf("submit: unexpected fence %T: %w", fence, core.ErrUnknown)
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{waitSemaphore.Handle},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signalSemaphore.Handle},
	}

	err := vd.locks.SafeQueueCall(uint32(vd.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(vd.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, inFlight.Handle); res != vk.Success {
			return resultError("vkQueueSubmit", res, core.ErrUnknown)
		}
		return nil
	})
	if err != nil {
		return err
	}
	commandBuffer.UpdateSubmitted()
	inFlight.IsSignaled = false
	return nil
}

func (vd *VulkanDevice) CreateFence(signaled bool) (frame.Fence, error) {
	return NewFence(vd, signaled)
}

func (vd *VulkanDevice) CreateSemaphore() (frame.Semaphore, error) {
	return NewSemaphore(vd)
}

// DeviceQuerySwapchainSupport reads capabilities, formats and present modes of
// surface for physicalDevice.
func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	support := VulkanSwapchainSupportInfo{}

	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &support.Capabilities); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res, core.ErrResourceCreation)
	}
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res, core.ErrResourceCreation)
	}
	if formatCount != 0 {
		support.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, support.Formats); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res, core.ErrResourceCreation)
		}
		for i := range support.Formats {
			support.Formats[i].Deref()
		}
	}

	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res, core.ErrResourceCreation)
	}
	if presentModeCount != 0 {
		support.PresentModes = make([]vk.PresentMode, presentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, support.PresentModes); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res, core.ErrResourceCreation)
		}
	}
	return support, nil
}

var depthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// DeviceDetectDepthFormat picks the first candidate whose optimal tiling
// supports depth/stencil attachments.
func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range depthFormatCandidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	device.DepthFormat = vk.FormatUndefined
	return false
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res, core.ErrResourceCreation)
	}
	if physicalDeviceCount == 0 {
		err := fmt.Errorf("no devices which support Vulkan were found: %w", core.ErrResourceCreation)
		core.LogError("%s", err)
		return err
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return resultError("vkEnumeratePhysicalDevices", res, core.ErrResourceCreation)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		PreferDiscreteGPU:    true,
	}

	selected := -1
	var selectedQueues VulkanPhysicalDeviceQueueFamilyInfo
	var selectedSupport VulkanSwapchainSupportInfo
	var selectedProperties vk.PhysicalDeviceProperties
	for i, pd := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()

		queueInfo, support, ok := PhysicalDeviceMeetsRequirements(pd, context.Surface, &properties, &requirements)
		if !ok {
			continue
		}
		discrete := properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu
		if selected < 0 || (requirements.PreferDiscreteGPU && discrete && selectedProperties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu) {
			selected = i
			selectedQueues = queueInfo
			selectedSupport = support
			selectedProperties = properties
		}
	}

	if selected < 0 {
		err := fmt.Errorf("no physical devices were found which meet the requirements: %w", core.ErrResourceCreation)
		core.LogError("%s", err)
		return err
	}

	device := context.Device
	device.PhysicalDevice = physicalDevices[selected]
	device.GraphicsQueueIndex = selectedQueues.GraphicsFamilyIndex
	device.PresentQueueIndex = selectedQueues.PresentFamilyIndex
	device.SwapchainSupport = selectedSupport
	device.Properties = selectedProperties
	vk.GetPhysicalDeviceFeatures(device.PhysicalDevice, &device.Features)
	device.Features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(device.PhysicalDevice, &device.Memory)
	device.Memory.Deref()

	logDeviceInfo(device)
	core.LogInfo("Physical device selected.")
	return nil
}

func logDeviceInfo(device *VulkanDevice) {
	properties := device.Properties
	core.LogInfo("Selected device: '%s'.", cString(properties.DeviceName[:]))
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(properties.DriverVersion).Major(),
		vk.Version(properties.DriverVersion).Minor(),
		vk.Version(properties.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)
	for j := 0; j < int(device.Memory.MemoryHeapCount); j++ {
		heap := device.Memory.MemoryHeaps[j]
		heap.Deref()
		memorySizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
}

// PhysicalDeviceMeetsRequirements checks queues, swapchain support and
// extensions of device against requirements.
func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, VulkanSwapchainSupportInfo, bool) {
	name := cString(properties.DeviceName[:])

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	flags := make([]vk.QueueFlags, queueFamilyCount)
	presentSupport := make([]bool, queueFamilyCount)
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags[i] = queueFamilies[i].QueueFlags

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			core.LogWarn("vkGetPhysicalDeviceSurfaceSupportKHR failed for '%s': %s", name, VulkanResultString(res))
			return VulkanPhysicalDeviceQueueFamilyInfo{}, VulkanSwapchainSupportInfo{}, false
		}
		presentSupport[i] = supportsPresent == vk.True
	}

	queueInfo := findQueueFamilies(flags, presentSupport)
	core.LogDebug("Graphics %d | Present %d | %s",
		queueInfo.GraphicsFamilyIndex, queueInfo.PresentFamilyIndex, name)
	if !queueInfo.satisfies(requirements) {
		core.LogInfo("Device '%s' does not meet queue requirements, skipping.", name)
		return queueInfo, VulkanSwapchainSupportInfo{}, false
	}

	support, err := DeviceQuerySwapchainSupport(device, surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device '%s'.", name)
		return queueInfo, support, false
	}

	if len(requirements.DeviceExtensionNames) > 0 {
		available, err := deviceExtensions(device)
		if err != nil {
			return queueInfo, support, false
		}
		for _, required := range requirements.DeviceExtensionNames {
			if _, ok := available[required]; !ok {
				core.LogInfo("Required extension not found: '%s', skipping device '%s'.", required, name)
				return queueInfo, support, false
			}
		}
	}
	return queueInfo, support, true
}

// findQueueFamilies prefers a single family for graphics and present.
func findQueueFamilies(flags []vk.QueueFlags, presentSupport []bool) VulkanPhysicalDeviceQueueFamilyInfo {
	info := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
	}
	for i, f := range flags {
		graphics := f&vk.QueueFlags(vk.QueueGraphicsBit) != 0

		if graphics && presentSupport[i] && (info.GraphicsFamilyIndex < 0 || info.GraphicsFamilyIndex != info.PresentFamilyIndex) {
			info.GraphicsFamilyIndex = int32(i)
			info.PresentFamilyIndex = int32(i)
		}
		if graphics && info.GraphicsFamilyIndex < 0 {
			info.GraphicsFamilyIndex = int32(i)
		}
		if presentSupport[i] && info.PresentFamilyIndex < 0 {
			info.PresentFamilyIndex = int32(i)
		}
	}
	return info
}

func deviceExtensions(device vk.PhysicalDevice) (map[string]struct{}, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, resultError("vkEnumerateDeviceExtensionProperties", res, core.ErrResourceCreation)
	}
	properties := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, properties); res != vk.Success {
			return nil, resultError("vkEnumerateDeviceExtensionProperties", res, core.ErrResourceCreation)
		}
	}
	names := make(map[string]struct{}, count)
	for i := range properties {
		properties[i].Deref()
		names[cString(properties[i].ExtensionName[:])] = struct{}{}
	}
	return names, nil
}
