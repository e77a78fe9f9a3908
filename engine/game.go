package engine

import "github.com/spaghettifunk/vkwrap/engine/renderer"

// Game is the set of hooks the engine drives. Only FnUpdate and FnRender are
// called every frame; every hook is optional.
type Game struct {
	// Set by the engine before FnInitialize runs.
	Renderer Renderer
	State    interface{}

	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnDraw       renderer.DrawFunc
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Renderer is the part of the renderer a game is allowed to drive.
type Renderer interface {
	SetClearColor(color [4]float32)
	ClearColor() [4]float32
	SetVSync(enabled bool)
	VSync() bool
	FrameNumber() uint64
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
