package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/spaghettifunk/vkwrap/engine/platform"
	"github.com/spaghettifunk/vkwrap/engine/renderer"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it owned
	EngineStageShutdown
)

// How often the frame metrics are written to the log, in seconds.
const metricsLogInterval = 5.0

// frameRenderer is what the engine needs from the renderer front end.
type frameRenderer interface {
	Renderer
	Initialize(appName string) error
	Shutdown() error
	DrawFrame() error
	SetDrawFunc(fn renderer.DrawFunc)
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	configPath   string

	platform *platform.Platform
	renderer frameRenderer
	watcher  *core.ConfigWatcher
	changes  <-chan *core.Config

	isRunning   bool
	isSuspended bool
	stop        atomic.Bool

	width  uint32
	height uint32

	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64

	listeners map[core.SystemEventCode]uint32
}

// New builds an engine for g. configPath is watched for changes once the
// engine is initialized; an empty path disables hot reload.
func New(cfg *core.Config, configPath string, g *Game) (*Engine, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	p := platform.New()
	r, err := renderer.New(renderer.Vulkan, p, cfg.Renderer)
	if err != nil {
		return nil, err
	}
	return newEngine(cfg, configPath, g, p, r), nil
}

func newEngine(cfg *core.Config, configPath string, g *Game, p *platform.Platform, r frameRenderer) *Engine {
	if g == nil {
		g = &Game{}
	}
	g.Renderer = r
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		configPath:   configPath,
		platform:     p,
		renderer:     r,
		isRunning:    true,
		width:        cfg.Application.StartWidth,
		height:       cfg.Application.StartHeight,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		listeners:    make(map[core.SystemEventCode]uint32),
	}
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if !core.EventSystemInitialize() {
		err := fmt.Errorf("failed to initialize the event system")
		core.LogError("%s", err)
		return err
	}
	e.registerEvents()

	app := e.config.Application
	if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
		return err
	}

	if err := e.renderer.Initialize(app.Name); err != nil {
		return err
	}
	if e.gameInstance.FnDraw != nil {
		e.renderer.SetDrawFunc(e.gameInstance.FnDraw)
	}

	if e.configPath != "" {
		w, err := core.WatchConfig(e.configPath)
		if err != nil {
			// Hot reload is a convenience, keep running without it.
			core.LogWarn("config hot reload disabled: %s", err)
		} else {
			e.watcher = w
			e.changes = w.Changes()
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) registerEvents() {
	handlers := map[core.SystemEventCode]core.FnOnEvent{
		core.EVENT_CODE_APPLICATION_QUIT: e.onEvent,
		core.EVENT_CODE_RESIZED:          e.onResized,
	}
	for code, fn := range handlers {
		if id, ok := core.EventRegister(code, fn); ok {
			e.listeners[code] = id
		}
	}
}

// Run drives Update and Render until the window closes, a quit event is
// fired or Stop is called. A non-nil error is fatal.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var sinceLog float64
	for e.isRunning {
		e.platform.PumpMessages()
		if e.stop.Load() || e.platform.ShouldClose() {
			e.isRunning = false
			break
		}
		if e.isSuspended {
			e.platform.WaitEvents()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		e.lastTime = currentTime

		if err := e.Update(delta); err != nil {
			core.LogError("Game update failed, shutting down.")
			return err
		}

		frameStartTime := e.platform.Uptime()
		if err := e.Render(delta); err != nil {
			return err
		}
		e.metrics.Update(e.platform.Uptime() - frameStartTime)

		sinceLog += delta
		if sinceLog >= metricsLogInterval {
			sinceLog = 0
			core.LogInfo("frame %d: %.1f fps, %.3f ms/frame", e.renderer.FrameNumber(), e.metrics.FPS(), e.metrics.FrameTime())
		}
	}
	return nil
}

// Update applies reloaded configuration and runs the game update hook.
func (e *Engine) Update(deltaTime float64) error {
drain:
	for {
		select {
		case cfg := <-e.changes:
			e.applyConfig(cfg)
		default:
			break drain
		}
	}
	if e.gameInstance.FnUpdate != nil {
		return e.gameInstance.FnUpdate(deltaTime)
	}
	return nil
}

// applyConfig takes over the settings that can change at runtime. Window and
// frames-in-flight settings only apply on the next start.
func (e *Engine) applyConfig(cfg *core.Config) {
	if cfg == nil {
		return
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		core.LogWarn("keeping log level %s: %s", e.config.Log.Level, err)
	}
	e.renderer.SetClearColor(cfg.Renderer.ClearColor)
	if cfg.Renderer.VSync != e.renderer.VSync() {
		e.renderer.SetVSync(cfg.Renderer.VSync)
	}
	if cfg.Renderer.FramesInFlight != e.config.Renderer.FramesInFlight ||
		cfg.Renderer.DesiredImageCount != e.config.Renderer.DesiredImageCount {
		core.LogWarn("frames_in_flight and desired_image_count changes apply after a restart")
	}
	e.config = cfg
	core.LogInfo("configuration reloaded")
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_CONFIG_RELOADED, Data: cfg})
}

// Render runs the game render hook and draws one frame.
func (e *Engine) Render(deltaTime float64) error {
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(deltaTime); err != nil {
			core.LogError("Game render failed, shutting down.")
			return err
		}
	}
	return e.renderer.DrawFrame()
}

// Stop asks Run to return after the current frame. Safe from any goroutine.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Shutdown releases everything in reverse initialization order. It keeps
// going past failures, so it can be used as a best-effort cleanup after a
// fatal error, and is a no-op when called twice.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown || e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
		e.watcher = nil
		e.changes = nil
	}
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	errs = append(errs, e.renderer.Shutdown())
	errs = append(errs, e.platform.Shutdown())

	for code, id := range e.listeners {
		core.EventUnregister(code, id)
	}
	errs = append(errs, core.EventSystemShutdown())

	e.currentStage = EngineStageShutdown
	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// GetFramebufferSize returns the last window size reported by the platform.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) bool {
	if context.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	width := se.WindowWidth
	height := se.WindowHeight
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("%s", err)
		}
	}
	// Other listeners may care about the resize too.
	return false
}
