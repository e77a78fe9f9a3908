package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/vkwrap/engine/core"
	emath "github.com/spaghettifunk/vkwrap/engine/math"
	"github.com/spaghettifunk/vkwrap/engine/renderer/frame"
)

// extentAnySize in currentExtent means the surface size follows the swapchain.
const extentAnySize = math.MaxUint32

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// FramebufferSizer reports the drawable size of a window in pixels.
type FramebufferSizer interface {
	FramebufferSize() (width, height uint32)
}

// SwapchainConfig holds the parameters a swapchain is (re)built with. Build it
// with NewSwapchainConfig.
type SwapchainConfig struct {
	desiredImageCount uint32
	imageUsage        vk.ImageUsageFlags
	arrayLayers       uint32
	preferredFormat   vk.SurfaceFormat
	presentMode       vk.PresentMode
}

type SwapchainOption func(*SwapchainConfig)

func WithImageUsage(usage vk.ImageUsageFlags) SwapchainOption {
	return func(c *SwapchainConfig) {
		c.imageUsage = usage
	}
}

func WithArrayLayers(layers uint32) SwapchainOption {
	return func(c *SwapchainConfig) {
		c.arrayLayers = layers
	}
}

func WithPreferredFormat(format vk.Format, colorSpace vk.ColorSpace) SwapchainOption {
	return func(c *SwapchainConfig) {
		c.preferredFormat = vk.SurfaceFormat{Format: format, ColorSpace: colorSpace}
	}
}

// WithPresentModePreference selects the mode used when the surface supports
// it. FIFO is the fallback since every surface supports it.
func WithPresentModePreference(mode vk.PresentMode) SwapchainOption {
	return func(c *SwapchainConfig) {
		c.presentMode = mode
	}
}

// NewSwapchainConfig defaults to colour attachment usage, one array layer,
// B8G8R8A8 sRGB and mailbox presentation.
func NewSwapchainConfig(desiredImageCount uint32, opts ...SwapchainOption) (SwapchainConfig, error) {
	cfg := SwapchainConfig{
		desiredImageCount: desiredImageCount,
		imageUsage:        vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		arrayLayers:       1,
		preferredFormat:   vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		presentMode:       vk.PresentModeMailbox,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.desiredImageCount < 1 {
		return SwapchainConfig{}, fmt.Errorf("swapchain config: desired image count must be at least 1: %w", core.ErrResourceCreation)
	}
	if cfg.arrayLayers < 1 {
		return SwapchainConfig{}, fmt.Errorf("swapchain config: array layers must be at least 1: %w", core.ErrResourceCreation)
	}
	if cfg.imageUsage == 0 {
		return SwapchainConfig{}, fmt.Errorf("swapchain config: image usage is empty: %w", core.ErrResourceCreation)
	}
	return cfg, nil
}

func (c SwapchainConfig) DesiredImageCount() uint32 { return c.desiredImageCount }
func (c SwapchainConfig) ImageUsage() vk.ImageUsageFlags { return c.imageUsage }
func (c SwapchainConfig) ArrayLayers() uint32 { return c.arrayLayers }
func (c SwapchainConfig) PreferredFormat() vk.SurfaceFormat { return c.preferredFormat }
func (c SwapchainConfig) PresentModePreference() vk.PresentMode { return c.presentMode }

// WithPresentMode returns a copy of c preferring mode.
func (c SwapchainConfig) WithPresentMode(mode vk.PresentMode) SwapchainConfig {
	c.presentMode = mode
	return c
}

type swapchainParams struct {
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  uint32
}

// Colour formats tried when the preferred one is missing, all in sRGB
// non-linear colour space.
var fallbackSurfaceFormats = []vk.Format{
	vk.FormatB8g8r8a8Srgb,
	vk.FormatR8g8b8a8Srgb,
	vk.FormatB8g8r8a8Unorm,
	vk.FormatR8g8b8a8Unorm,
}

func negotiateSwapchain(support VulkanSwapchainSupportInfo, cfg SwapchainConfig, fbWidth, fbHeight uint32) (swapchainParams, error) {
	caps := support.Capabilities

	format, err := chooseSurfaceFormat(support.Formats, cfg.preferredFormat)
	if err != nil {
		return swapchainParams{}, err
	}

	if caps.MaxImageArrayLayers > 0 && cfg.arrayLayers > caps.MaxImageArrayLayers {
		return swapchainParams{}, fmt.Errorf("swapchain: %d array layers requested, surface supports %d: %w",
			cfg.arrayLayers, caps.MaxImageArrayLayers, core.ErrResourceCreation)
	}
	if caps.SupportedUsageFlags&cfg.imageUsage != cfg.imageUsage {
		return swapchainParams{}, fmt.Errorf("swapchain: image usage %#x not supported by the surface: %w",
			uint32(cfg.imageUsage), core.ErrResourceCreation)
	}

	return swapchainParams{
		Format:      format,
		PresentMode: choosePresentMode(support.PresentModes, cfg.presentMode),
		Extent:      chooseExtent(caps, fbWidth, fbHeight),
		ImageCount:  chooseImageCount(caps, cfg.desiredImageCount),
	}, nil
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat, preferred vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, fmt.Errorf("surface reports no formats: %w", core.ErrResourceCreation)
	}
	// A single undefined entry means the surface takes any format.
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return preferred, nil
	}
	for _, f := range formats {
		if f.Format == preferred.Format && f.ColorSpace == preferred.ColorSpace {
			return f, nil
		}
	}
	for _, candidate := range fallbackSurfaceFormats {
		for _, f := range formats {
			if f.Format == candidate && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
				return f, nil
			}
		}
	}
	core.LogWarn("No known colour format offered by the surface, using format %d.", formats[0].Format)
	return formats[0], nil
}

func choosePresentMode(modes []vk.PresentMode, preferred vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == preferred {
			return mode
		}
	}
	return vk.PresentModeFifo
}

func chooseExtent(caps vk.SurfaceCapabilities, fbWidth, fbHeight uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != extentAnySize {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  emath.Clamp(fbWidth, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: emath.Clamp(fbHeight, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps vk.SurfaceCapabilities, desired uint32) uint32 {
	maxCount := caps.MaxImageCount
	if maxCount == 0 {
		// No upper bound.
		maxCount = math.MaxUint32
	}
	return emath.Clamp(desired, caps.MinImageCount, maxCount)
}

// VulkanSwapchain is the presentation surface: swapchain images, their views
// and a depth target sized to the same extent.
type VulkanSwapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	SwapExtent  vk.Extent2D
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *VulkanImage

	// Generation changes on every build and tags the logs of that build.
	Generation uuid.UUID

	config  SwapchainConfig
	context *VulkanContext
	window  FramebufferSizer
}

func SwapchainCreate(context *VulkanContext, window FramebufferSizer, cfg SwapchainConfig) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{
		config:  cfg,
		context: context,
		window:  window,
	}
	if err := swapchain.build(); err != nil {
		return nil, err
	}
	return swapchain, nil
}

func (vs *VulkanSwapchain) Config() SwapchainConfig {
	return vs.config
}

// Reconfigure stores cfg for the next Rebuild.
func (vs *VulkanSwapchain) Reconfigure(cfg SwapchainConfig) {
	vs.config = cfg
}

// Rebuild destroys the swapchain and builds it again with the stored config
// against the current window size.
func (vs *VulkanSwapchain) Rebuild() error {
	vs.Destroy()
	return vs.build()
}

func (vs *VulkanSwapchain) build() error {
	device := vs.context.Device

	support, err := DeviceQuerySwapchainSupport(device.PhysicalDevice, vs.context.Surface)
	if err != nil {
		return err
	}
	device.SwapchainSupport = support

	fbWidth, fbHeight := vs.window.FramebufferSize()
	params, err := negotiateSwapchain(support, vs.config, fbWidth, fbHeight)
	if err != nil {
		core.LogError("%s", err)
		return err
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          vs.context.Surface,
		MinImageCount:    params.ImageCount,
		ImageFormat:      params.Format.Format,
		ImageColorSpace:  params.Format.ColorSpace,
		ImageExtent:      params.Extent,
		ImageArrayLayers: vs.config.arrayLayers,
		ImageUsage:       vs.config.imageUsage,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      params.PresentMode,
		Clipped:          vk.True,
	}

	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	err = vs.context.Locks.SafeCall(SwapchainManagement, func() error {
		if res := vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, vs.context.Allocator, &handle); res != vk.Success {
			return resultError("vkCreateSwapchainKHR", res, core.ErrResourceCreation)
		}
		return nil
	})
	if err != nil {
		return err
	}
	vs.Handle = handle
	vs.ImageFormat = params.Format
	vs.PresentMode = params.PresentMode
	vs.SwapExtent = params.Extent

	// The driver may hand back more images than requested.
	var imageCount uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, vs.Handle, &imageCount, nil); res != vk.Success {
		vs.Destroy()
		return resultError("vkGetSwapchainImagesKHR", res, core.ErrResourceCreation)
	}
	vs.Images = make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(device.LogicalDevice, vs.Handle, &imageCount, vs.Images); res != vk.Success {
		vs.Destroy()
		return resultError("vkGetSwapchainImagesKHR", res, core.ErrResourceCreation)
	}

	vs.Views = make([]vk.ImageView, 0, imageCount)
	for _, image := range vs.Images {
		view, err := createImageView(vs.context, image, vs.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			vs.Destroy()
			return err
		}
		vs.Views = append(vs.Views, view)
	}

	if err := vs.createDepthAttachment(); err != nil {
		vs.Destroy()
		return err
	}

	vs.Generation = uuid.New()
	core.LogInfo("Swapchain %s created: %dx%d, %d images, format %d, present mode %d.",
		vs.Generation, vs.SwapExtent.Width, vs.SwapExtent.Height, len(vs.Images), vs.ImageFormat.Format, vs.PresentMode)
	return nil
}

func (vs *VulkanSwapchain) createDepthAttachment() error {
	device := vs.context.Device
	if !DeviceDetectDepthFormat(device) {
		err := fmt.Errorf("failed to find a supported depth format: %w", core.ErrResourceCreation)
		core.LogError("%s", err)
		return err
	}

	depth, err := ImageCreate(
		vs.context,
		vk.ImageType2d,
		vs.SwapExtent.Width,
		vs.SwapExtent.Height,
		device.DepthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return err
	}
	vs.DepthAttachment = depth

	var transitionErr error
	err = RunSingleUse(device, func(cb *VulkanCommandBuffer) {
		transitionErr = depth.TransitionLayout(cb, vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal)
	})
	if transitionErr != nil {
		return transitionErr
	}
	return err
}

// Destroy releases the depth target, the image views and the swapchain. The
// images belong to the swapchain and go with it.
func (vs *VulkanSwapchain) Destroy() {
	device := vs.context.Device
	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy()
		vs.DepthAttachment = nil
	}
	for _, view := range vs.Views {
		vk.DestroyImageView(device.LogicalDevice, view, vs.context.Allocator)
	}
	vs.Views = nil
	vs.Images = nil
	if vs.Handle != vk.NullSwapchain {
		_ = vs.context.Locks.SafeCall(SwapchainManagement, func() error {
			vk.DestroySwapchain(device.LogicalDevice, vs.Handle, vs.context.Allocator)
			return nil
		})
		vs.Handle = vk.NullSwapchain
		core.LogDebug("Swapchain %s destroyed.", vs.Generation)
	}
}

func (vs *VulkanSwapchain) Extent() frame.Extent {
	return frame.Extent{Width: vs.SwapExtent.Width, Height: vs.SwapExtent.Height}
}

func (vs *VulkanSwapchain) ImageCount() uint32 {
	return uint32(len(vs.Images))
}

// Acquire requests the next image, signaling signal when it can be written.
func (vs *VulkanSwapchain) Acquire(signal frame.Semaphore) (uint32, frame.SurfaceStatus, error) {
	semaphore, ok := signal.(*VulkanSemaphore)
	if !ok {
		return 0, frame.SurfaceOptimal, fmt.Errorf("acquire: unexpected semaphore %T: %w", signal, core.ErrSurfaceAcquire)
	}

	var imageIndex uint32
	result := vk.AcquireNextImage(vs.context.Device.LogicalDevice, vs.Handle, math.MaxUint64, semaphore.Handle, vk.NullFence, &imageIndex)
	status, err := surfaceStatusFor("vkAcquireNextImageKHR", result, core.ErrSurfaceAcquire)
	if err != nil || status == frame.SurfaceOutOfDate {
		return 0, status, err
	}
	return imageIndex, status, nil
}

// Present hands imageIndex back to the presentation engine once wait is
// signaled.
func (vs *VulkanSwapchain) Present(imageIndex uint32, wait frame.Semaphore) (frame.SurfaceStatus, error) {
	semaphore, ok := wait.(*VulkanSemaphore)
	if !ok {
		return frame.SurfaceOptimal, fmt.Errorf("present: unexpected semaphore %T: %w", wait, core.ErrPresent)
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphore.Handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}

	device := vs.context.Device
	var result vk.Result
	err := vs.context.Locks.SafeQueueCall(uint32(device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(device.PresentQueue, &presentInfo)
		return nil
	})
	if err != nil {
		return frame.SurfaceOptimal, err
	}

	return surfaceStatusFor("vkQueuePresentKHR", result, core.ErrPresent)
}

// surfaceStatusFor maps the result of an acquire or present call. Out of date
// and suboptimal are statuses the frame loop recovers from; any other failure
// is wrapped in fatal.
func surfaceStatusFor(op string, result vk.Result, fatal error) (frame.SurfaceStatus, error) {
	switch result {
	case vk.Success:
		return frame.SurfaceOptimal, nil
	case vk.Suboptimal:
		return frame.SurfaceSuboptimal, nil
	case vk.ErrorOutOfDate:
		return frame.SurfaceOutOfDate, nil
	default:
		return frame.SurfaceOptimal, resultError(op, result, fatal)
	}
}
