package renderer

import (
	"fmt"

	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/spaghettifunk/vkwrap/engine/platform"
	"github.com/spaghettifunk/vkwrap/engine/renderer/vulkan"
)

type RendererType uint8

const (
	Vulkan RendererType = iota
)

// Renderer is the engine-facing front end of a graphics backend.
type Renderer struct {
	backend RendererBackend
}

func New(rendererType RendererType, p *platform.Platform, cfg core.RendererConfig) (*Renderer, error) {
	switch rendererType {
	case Vulkan:
		return &Renderer{backend: vulkan.New(p, cfg)}, nil
	default:
		err := fmt.Errorf("unsupported renderer type %d: %w", rendererType, core.ErrResourceCreation)
		core.LogError("%s", err)
		return nil, err
	}
}

func (r *Renderer) Initialize(appName string) error {
	return r.backend.Initialize(appName)
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

// DrawFrame renders one frame. Only fatal errors are returned; a surface that
// went out of date is rebuilt internally.
func (r *Renderer) DrawFrame() error {
	if err := r.backend.Render(); err != nil {
		core.LogError("Renderer frame %d failed: %s", r.backend.FrameNumber(), err)
		return err
	}
	return nil
}

func (r *Renderer) SetClearColor(color [4]float32) {
	r.backend.SetClearColor(color)
}

func (r *Renderer) ClearColor() [4]float32 {
	return r.backend.ClearColor()
}

func (r *Renderer) SetVSync(enabled bool) {
	if enabled == r.backend.VSync() {
		return
	}
	r.backend.SetVSync(enabled)
}

func (r *Renderer) VSync() bool {
	return r.backend.VSync()
}

func (r *Renderer) FrameNumber() uint64 {
	return r.backend.FrameNumber()
}

// SetDrawFunc installs fn as the draw hook of the main render pass.
func (r *Renderer) SetDrawFunc(fn DrawFunc) {
	r.backend.SetDrawFunc(fn)
}
