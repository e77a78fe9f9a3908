package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/spaghettifunk/vkwrap/engine/platform"
	"github.com/spaghettifunk/vkwrap/engine/renderer/frame"
)

// DrawFunc records draw commands inside the main render pass.
type DrawFunc = frame.RecordFunc

type VulkanRenderer struct {
	platform *platform.Platform
	config   core.RendererConfig
	context  *VulkanContext

	swapchain      *VulkanSwapchain
	renderpass     *VulkanRenderpass
	framebuffers   []*VulkanFramebuffer
	commandBuffers []*VulkanCommandBuffer
	syncs          *frame.SyncManager
	teardown       *frame.Teardown
	loop           *frame.Loop

	clearColor [4]float32
	draw       DrawFunc
}

func New(p *platform.Platform, cfg core.RendererConfig) *VulkanRenderer {
	return &VulkanRenderer{
		platform:   p,
		config:     cfg,
		context:    &VulkanContext{Allocator: nil},
		teardown:   frame.NewTeardown(),
		clearColor: cfg.ClearColor,
	}
}

func presentModeFor(vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	return vk.PresentModeMailbox
}

// Initialize creates every device-lifetime object, the swapchain and the
// frame loop. Objects are queued for teardown as soon as they exist, so
// Shutdown releases whatever was created even when Initialize fails midway.
func (vr *VulkanRenderer) Initialize(appName string) error {
	procAddr := vr.platform.InstanceProcAddr()
	if procAddr == nil {
		err := fmt.Errorf("vkGetInstanceProcAddr is nil: %w", core.ErrResourceCreation)
		core.LogError("%s", err)
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		err = fmt.Errorf("failed to initialize vk: %v: %w", err, core.ErrResourceCreation)
		core.LogError("%s", err)
		return err
	}

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	if vr.config.Validation {
		if err := vr.createDebugCallback(); err != nil {
			return err
		}
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateWindowSurface(vr.context.Instance)
	if err != nil {
		return err
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	vr.teardown.Device.PushFunc("surface", func() {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	})
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vr.context); err != nil {
		DeviceDestroy(vr.context)
		return err
	}
	vr.teardown.Device.PushFunc("device", func() { DeviceDestroy(vr.context) })
	device := vr.context.Device

	framesInFlight := int(vr.config.FramesInFlight)
	cmds, err := AllocateFrameCommandBuffers(device, framesInFlight)
	if err != nil {
		return err
	}
	vr.commandBuffers = cmds
	vr.teardown.Device.PushFunc("command buffers", func() {
		for _, cb := range vr.commandBuffers {
			cb.Free()
		}
		vr.commandBuffers = nil
	})

	// Registered before creation: a partial set is still released.
	vr.syncs = frame.NewSyncManager(device)
	vr.teardown.Device.PushFunc("frame syncs", vr.syncs.DestroyAll)
	if _, err := vr.syncs.CreateFrameSyncs(framesInFlight); err != nil {
		return err
	}

	scConfig, err := NewSwapchainConfig(vr.config.DesiredImageCount,
		WithPresentModePreference(presentModeFor(vr.config.VSync)))
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	sc, err := SwapchainCreate(vr.context, vr.platform, scConfig)
	if err != nil {
		return err
	}
	vr.swapchain = sc

	frameCmds := make([]frame.CommandBuffer, len(cmds))
	for i, cb := range cmds {
		frameCmds[i] = cb
	}
	loop, err := frame.NewLoop(frame.LoopConfig{
		Device:         device,
		Surface:        sc,
		Window:         vr.platform,
		Syncs:          vr.syncs,
		CommandBuffers: frameCmds,
		Teardown:       vr.teardown,
		Record:         vr.record,
		SetupSurface:   vr.setupSurface,
	})
	if err != nil {
		sc.Destroy()
		return err
	}
	vr.loop = loop
	if err := loop.Attach(); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("vkwrap"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := vr.platform.RequiredInstanceExtensions()
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if vr.config.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var layers []string
	if vr.config.Validation {
		layers = vr.config.ValidationLayers
		if err := checkValidationLayers(layers); err != nil {
			return err
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &instance); res != vk.Success {
		return resultError("vkCreateInstance", res, core.ErrResourceCreation)
	}
	vr.context.Instance = instance
	vr.teardown.Device.PushFunc("instance", func() {
		vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	})
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		err = fmt.Errorf("failed to load instance functions: %v: %w", err, core.ErrResourceCreation)
		core.LogError("%s", err)
		return err
	}

	core.LogInfo("Vulkan Instance created.")
	return nil
}

// checkValidationLayers makes sure every layer in required is installed.
func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res, core.ErrResourceCreation)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res, core.ErrResourceCreation)
	}

	names := make(map[string]struct{}, len(available))
	for i := range available {
		available[i].Deref()
		names[cString(available[i].LayerName[:])] = struct{}{}
	}
	for _, layer := range required {
		if _, ok := names[layer]; !ok {
			err := fmt.Errorf("required validation layer is missing: %s: %w", layer, core.ErrResourceCreation)
			core.LogError("%s", err)
			return err
		}
		core.LogDebug("Found validation layer %s.", layer)
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func (vr *VulkanRenderer) createDebugCallback() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}

	var dbg vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, vr.context.Allocator, &dbg); res != vk.Success {
		return resultError("vkCreateDebugReportCallbackEXT", res, core.ErrResourceCreation)
	}
	vr.context.debugMessenger = dbg
	vr.teardown.Device.PushFunc("debug report callback", func() {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	})
	core.LogDebug("Vulkan debugger created.")
	return nil
}

// setupSurface creates the render pass and framebuffers for the current
// swapchain. Both land on the surface tier, above the swapchain itself.
func (vr *VulkanRenderer) setupSurface(surface frame.Surface, queue *frame.DeletionQueue) error {
	sc, ok := surface.(*VulkanSwapchain)
	if !ok {
		return fmt.Errorf("surface setup: unexpected surface %T: %w", surface, core.ErrResourceCreation)
	}

	rp, err := RenderpassCreate(vr.context, sc.ImageFormat.Format, vr.context.Device.DepthFormat, vr.clearColor, 1.0, 0)
	if err != nil {
		return err
	}
	vr.renderpass = rp
	queue.Push("renderpass", rp)

	fbs, err := CreateSwapchainFramebuffers(vr.context, sc, rp, queue)
	if err != nil {
		return err
	}
	vr.framebuffers = fbs
	return nil
}

func (vr *VulkanRenderer) record(cmd frame.CommandBuffer, info frame.FrameInfo) error {
	cb, ok := cmd.(*VulkanCommandBuffer)
	if !ok {
		return fmt.Errorf("record: unexpected command buffer %T: %w", cmd, core.ErrUnknown)
	}
	if int(info.ImageIndex) >= len(vr.framebuffers) {
		err := fmt.Errorf("framebuffer %d of %d: %w", info.ImageIndex, len(vr.framebuffers), core.ErrIndexOutOfRange)
		core.LogError("%s", err)
		return err
	}

	cb.SetViewportAndScissor(
		vk.Viewport{
			X:        info.Viewport.X,
			Y:        info.Viewport.Y,
			Width:    info.Viewport.Width,
			Height:   info.Viewport.Height,
			MinDepth: info.Viewport.MinDepth,
			MaxDepth: info.Viewport.MaxDepth,
		},
		vk.Rect2D{
			Offset: vk.Offset2D{X: info.Scissor.X, Y: info.Scissor.Y},
			Extent: vk.Extent2D{Width: info.Scissor.Extent.Width, Height: info.Scissor.Extent.Height},
		})

	vr.renderpass.Begin(cb, vr.framebuffers[info.ImageIndex], vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height})
	var drawErr error
	if vr.draw != nil {
		drawErr = vr.draw(cb, info)
	}
	vr.renderpass.End(cb)
	return drawErr
}

// Render draws one frame. Surface invalidation is handled internally.
func (vr *VulkanRenderer) Render() error {
	if vr.loop == nil {
		return fmt.Errorf("renderer is not initialized: %w", core.ErrUnknown)
	}
	return vr.loop.Render()
}

func (vr *VulkanRenderer) SetClearColor(color [4]float32) {
	vr.clearColor = color
	if vr.renderpass != nil {
		vr.renderpass.SetClearColor(color)
	}
}

func (vr *VulkanRenderer) ClearColor() [4]float32 {
	return vr.clearColor
}

// SetVSync switches between FIFO and mailbox presentation. The swapchain is
// rebuilt on the next frame.
func (vr *VulkanRenderer) SetVSync(enabled bool) {
	vr.config.VSync = enabled
	if vr.swapchain == nil {
		return
	}
	vr.swapchain.Reconfigure(vr.swapchain.Config().WithPresentMode(presentModeFor(enabled)))
	vr.platform.MarkResizePending()
	core.LogInfo("VSync %t, swapchain rebuild requested.", enabled)
}

func (vr *VulkanRenderer) VSync() bool {
	return vr.config.VSync
}

func (vr *VulkanRenderer) SetDrawFunc(fn DrawFunc) {
	vr.draw = fn
}

func (vr *VulkanRenderer) FrameNumber() uint64 {
	if vr.loop == nil {
		return 0
	}
	return vr.loop.FrameCounter()
}

// Shutdown waits for the device to go idle and releases everything in
// reverse creation order. It is safe after a failed Initialize.
func (vr *VulkanRenderer) Shutdown() error {
	if vr.loop != nil {
		err := vr.loop.Shutdown()
		vr.loop = nil
		return err
	}
	if vr.context.Device != nil && vr.context.Device.LogicalDevice != nil {
		_ = vr.context.Device.WaitIdle()
	}
	vr.teardown.Flush()
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
