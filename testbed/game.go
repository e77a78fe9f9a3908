package testbed

import (
	gomath "math"

	"github.com/spaghettifunk/vkwrap/engine"
	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/spaghettifunk/vkwrap/engine/math"
)

// Radians per second of the clear colour animation.
const pulseSpeed = 1.5

type TestGame struct {
	*engine.Game
}

type gameState struct {
	// Colour the animation oscillates around, taken from the configuration.
	baseColor [4]float32
	phase     float64

	width  uint32
	height uint32

	listeners map[core.SystemEventCode]uint32
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{
				listeners: make(map[core.SystemEventCode]uint32),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	state := g.state()
	state.baseColor = g.Renderer.ClearColor()
	state.phase = 0

	if id, ok := core.EventRegister(core.EVENT_CODE_KEY_PRESSED, g.gameOnKey); ok {
		state.listeners[core.EVENT_CODE_KEY_PRESSED] = id
	}
	if id, ok := core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, g.gameOnConfig); ok {
		state.listeners[core.EVENT_CODE_CONFIG_RELOADED] = id
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	state.phase = gomath.Mod(state.phase+deltaTime*pulseSpeed, 2*gomath.Pi)
	return nil
}

// Render pushes the animated clear colour to the renderer.
func (g *TestGame) Render(deltaTime float64) error {
	g.Renderer.SetClearColor(pulse(g.state().baseColor, g.state().phase))
	return nil
}

// pulse shifts the RGB channels of base around a sine wave, one third of a
// period apart. Alpha is left alone.
func pulse(base [4]float32, phase float64) [4]float32 {
	out := base
	for i := 0; i < 3; i++ {
		offset := 0.25 * gomath.Sin(phase+float64(i)*2*gomath.Pi/3)
		out[i] = math.Clamp(base[i]+float32(offset), 0, 1)
	}
	return out
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	for code, id := range state.listeners {
		core.EventUnregister(code, id)
	}
	state.listeners = make(map[core.SystemEventCode]uint32)
	return nil
}

func (g *TestGame) gameOnKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if ke.KeyCode == core.KEY_V {
		enabled := !g.Renderer.VSync()
		core.LogInfo("V pressed, vsync %t.", enabled)
		g.Renderer.SetVSync(enabled)
		return true
	}
	return false
}

func (g *TestGame) gameOnConfig(context core.EventContext) bool {
	cfg, ok := context.Data.(*core.Config)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	g.state().baseColor = cfg.Renderer.ClearColor
	return false
}
