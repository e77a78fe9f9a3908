package renderer

import (
	"github.com/spaghettifunk/vkwrap/engine/renderer/frame"
	"github.com/spaghettifunk/vkwrap/engine/renderer/vulkan"
)

type RendererBackend interface {
	Initialize(appName string) error
	Shutdown() error
	Render() error
	SetClearColor(color [4]float32)
	ClearColor() [4]float32
	SetVSync(enabled bool)
	VSync() bool
	FrameNumber() uint64
	SetDrawFunc(fn DrawFunc)
}

// DrawFunc records draw commands inside the main render pass of a frame.
type DrawFunc = frame.RecordFunc

var _ RendererBackend = (*vulkan.VulkanRenderer)(nil)
