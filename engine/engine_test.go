package engine

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/vkwrap/engine/core"
	"github.com/spaghettifunk/vkwrap/engine/platform"
	"github.com/spaghettifunk/vkwrap/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeRenderer struct {
	clearColor   [4]float32
	vsync        bool
	vsyncCalls   int
	frames       uint64
	drawErr      error
	log          []string
	drawFunc     renderer.DrawFunc
	initialized  bool
	shutdownRuns int
}

func (f *fakeRenderer) Initialize(appName string) error {
	f.initialized = true
	return nil
}

func (f *fakeRenderer) Shutdown() error {
	f.shutdownRuns++
	return nil
}

func (f *fakeRenderer) DrawFrame() error {
	f.log = append(f.log, "draw")
	if f.drawErr != nil {
		return f.drawErr
	}
	f.frames++
	return nil
}

func (f *fakeRenderer) SetDrawFunc(fn renderer.DrawFunc) { f.drawFunc = fn }

func (f *fakeRenderer) SetClearColor(color [4]float32) { f.clearColor = color }

func (f *fakeRenderer) ClearColor() [4]float32 { return f.clearColor }

func (f *fakeRenderer) SetVSync(enabled bool) {
	f.vsync = enabled
	f.vsyncCalls++
}

func (f *fakeRenderer) VSync() bool { return f.vsync }

func (f *fakeRenderer) FrameNumber() uint64 { return f.frames }

func newTestEngine(t *testing.T, g *Game) (*Engine, *fakeRenderer) {
	t.Helper()
	require.True(t, core.EventSystemInitialize())
	t.Cleanup(func() { _ = core.EventSystemShutdown() })

	r := &fakeRenderer{}
	e := newEngine(core.DefaultConfig(), "", g, platform.New(), r)
	e.registerEvents()
	return e, r
}

func TestNewEngineHandsRendererToGame(t *testing.T) {
	g := &Game{}
	e, r := newTestEngine(t, g)

	assert.Same(t, r, g.Renderer)
	assert.Equal(t, EngineStageUninitialized, e.Stage())
	w, h := e.GetFramebufferSize()
	assert.Equal(t, uint32(1280), w)
	assert.Equal(t, uint32(720), h)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Renderer.FramesInFlight = 0

	_, err := New(cfg, "", &Game{})
	assert.Error(t, err)
}

func TestUpdateAppliesReloadedConfig(t *testing.T) {
	e, r := newTestEngine(t, &Game{})
	changes := make(chan *core.Config, 1)
	e.changes = changes

	var reloaded *core.Config
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, func(ctx core.EventContext) bool {
		reloaded = ctx.Data.(*core.Config)
		return true
	})

	cfg := core.DefaultConfig()
	cfg.Renderer.ClearColor = [4]float32{0.5, 0.25, 0, 1}
	cfg.Renderer.VSync = true
	changes <- cfg

	require.NoError(t, e.Update(0.016))

	assert.Equal(t, [4]float32{0.5, 0.25, 0, 1}, r.clearColor)
	assert.True(t, r.vsync)
	assert.Equal(t, 1, r.vsyncCalls)
	assert.Same(t, cfg, e.config)
	assert.Same(t, cfg, reloaded)

	// Nothing pending: nothing applied.
	require.NoError(t, e.Update(0.016))
	assert.Equal(t, 1, r.vsyncCalls)
}

func TestUpdateKeepsVSyncWhenUnchanged(t *testing.T) {
	e, r := newTestEngine(t, &Game{})
	changes := make(chan *core.Config, 1)
	e.changes = changes

	changes <- core.DefaultConfig()
	require.NoError(t, e.Update(0.016))
	assert.Equal(t, 0, r.vsyncCalls)
	assert.Equal(t, core.DefaultConfig().Renderer.ClearColor, r.clearColor)
}

func TestUpdateRunsGameHook(t *testing.T) {
	var got float64
	boom := errors.New("boom")
	g := &Game{FnUpdate: func(dt float64) error {
		got = dt
		return nil
	}}
	e, _ := newTestEngine(t, g)

	require.NoError(t, e.Update(0.25))
	assert.Equal(t, 0.25, got)

	g.FnUpdate = func(float64) error { return boom }
	assert.ErrorIs(t, e.Update(0.25), boom)
}

func TestRenderRunsGameBeforeDrawing(t *testing.T) {
	var r *fakeRenderer
	g := &Game{}
	g.FnRender = func(float64) error {
		r.log = append(r.log, "game")
		return nil
	}
	var e *Engine
	e, r = newTestEngine(t, g)

	require.NoError(t, e.Render(0.016))
	assert.Equal(t, []string{"game", "draw"}, r.log)
	assert.Equal(t, uint64(1), r.FrameNumber())

	r.drawErr = core.ErrPresent
	assert.ErrorIs(t, e.Render(0.016), core.ErrPresent)
}

func TestRenderStopsOnGameError(t *testing.T) {
	boom := errors.New("boom")
	g := &Game{FnRender: func(float64) error { return boom }}
	e, r := newTestEngine(t, g)

	assert.ErrorIs(t, e.Render(0.016), boom)
	assert.Empty(t, r.log)
}

func TestQuitEventStopsTheLoop(t *testing.T) {
	e, _ := newTestEngine(t, &Game{})
	require.True(t, e.isRunning)

	assert.True(t, core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT}))
	assert.False(t, e.isRunning)
}

func TestResizeSuspendsAndResumes(t *testing.T) {
	var sizes [][2]uint32
	g := &Game{FnOnResize: func(w, h uint32) error {
		sizes = append(sizes, [2]uint32{w, h})
		return nil
	}}
	e, _ := newTestEngine(t, g)

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 0, WindowHeight: 0}})
	assert.True(t, e.isSuspended)
	assert.Empty(t, sizes)

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 800, WindowHeight: 600}})
	assert.False(t, e.isSuspended)
	assert.Equal(t, [][2]uint32{{800, 600}}, sizes)

	// Same size again is not a resize.
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 800, WindowHeight: 600}})
	assert.Len(t, sizes, 1)
}

func TestStopIsSafeFromAnotherGoroutine(t *testing.T) {
	e, _ := newTestEngine(t, &Game{})
	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()
	<-done
	assert.True(t, e.stop.Load())
}
