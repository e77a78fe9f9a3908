package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/vkwrap/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the glfw window and implements the window side of the frame
// loop: framebuffer size queries, the resize-pending flag and event waits.
type Platform struct {
	Window *glfw.Window

	resizePending bool
	startTime     float64
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		err = fmt.Errorf("failed to initialize glfw: %w", err)
		core.LogError("%s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		err := fmt.Errorf("glfw reports no Vulkan loader: %w", core.ErrResourceCreation)
		core.LogError("%s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		err = fmt.Errorf("failed to create window: %w", err)
		core.LogError("%s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.startTime = glfw.GetTime()
	core.LogInfo("Window '%s' created (%dx%d).", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events without blocking.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one window event arrives.
func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window == nil || p.Window.ShouldClose()
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	if w < 0 || h < 0 {
		return 0, 0
	}
	return uint32(w), uint32(h)
}

func (p *Platform) ResizePending() bool {
	return p.resizePending
}

// MarkResizePending forces the renderer through the surface rebuild path on
// the next frame.
func (p *Platform) MarkResizePending() {
	p.resizePending = true
}

func (p *Platform) ClearResizePending() {
	p.resizePending = false
}

// Uptime is the number of seconds since Startup.
func (p *Platform) Uptime() float64 {
	return glfw.GetTime() - p.startTime
}

// RequiredInstanceExtensions lists the instance extensions glfw needs to
// create a presentation surface on this platform.
func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// CreateWindowSurface returns the raw VkSurfaceKHR handle for instance.
func (p *Platform) CreateWindowSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		err = fmt.Errorf("vulkan surface creation failed: %v: %w", err, core.ErrResourceCreation)
		core.LogError("%s", err)
		return 0, err
	}
	return surface, nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code, ok := translateKey(key)
	if !ok {
		return
	}
	switch action {
	case glfw.Press:
		if code == core.KEY_ESCAPE {
			core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
			return
		}
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: code}})
	case glfw.Release:
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_RELEASED, Data: &core.KeyEvent{KeyCode: code}})
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resizePending = true
	core.LogDebug("framebuffer resized to %dx%d", width, height)
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{WindowWidth: uint32(width), WindowHeight: uint32(height)},
	})
}

func translateKey(key glfw.Key) (core.KeyCode, bool) {
	switch key {
	case glfw.KeyEscape:
		return core.KEY_ESCAPE, true
	case glfw.KeyV:
		return core.KEY_V, true
	}
	return 0, false
}
