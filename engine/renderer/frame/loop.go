package frame

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/vkwrap/engine/core"
)

type State uint8

const (
	StateIdle State = iota
	StateWaitingOnFence
	StateAcquiring
	StateRecording
	StateSubmitting
	StatePresenting
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingOnFence:
		return "waiting-on-fence"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateSubmitting:
		return "submitting"
	case StatePresenting:
		return "presenting"
	case StateInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// LoopConfig lists the collaborators of a Loop. Every field is required.
type LoopConfig struct {
	Device  Device
	Surface Surface
	Window  Window
	// Syncs must already hold the frame sync sets; the number of sets is the
	// number of frames in flight.
	Syncs          *SyncManager
	CommandBuffers []CommandBuffer
	Teardown       *Teardown
	Record         RecordFunc
	SetupSurface   SurfaceSetupFunc
}

// Loop runs the per-frame acquire/record/submit/present protocol.
type Loop struct {
	device   Device
	surface  Surface
	window   Window
	syncs    *SyncManager
	cmds     []CommandBuffer
	teardown *Teardown
	record   RecordFunc
	setup    SurfaceSetupFunc

	frameCounter uint64
	state        State
	attached     bool
	rebuilds     int
}

func NewLoop(cfg LoopConfig) (*Loop, error) {
	var missing string
	switch {
	case cfg.Device == nil:
		missing = "device"
	case cfg.Surface == nil:
		missing = "surface"
	case cfg.Window == nil:
		missing = "window"
	case cfg.Syncs == nil:
		missing = "sync manager"
	case cfg.Teardown == nil:
		missing = "teardown"
	case cfg.Record == nil:
		missing = "record func"
	case cfg.SetupSurface == nil:
		missing = "surface setup func"
	}
	if missing != "" {
		err := fmt.Errorf("frame loop: missing %s: %w", missing, core.ErrResourceCreation)
		core.LogError("%s", err)
		return nil, err
	}
	n := len(cfg.Syncs.Sets())
	if n == 0 {
		err := fmt.Errorf("frame loop: no frame sync sets: %w", core.ErrIndexOutOfRange)
		core.LogError("%s", err)
		return nil, err
	}
	if len(cfg.CommandBuffers) < n {
		err := fmt.Errorf("frame loop: %d command buffers for %d frames in flight: %w", len(cfg.CommandBuffers), n, core.ErrIndexOutOfRange)
		core.LogError("%s", err)
		return nil, err
	}
	return &Loop{
		device:   cfg.Device,
		surface:  cfg.Surface,
		window:   cfg.Window,
		syncs:    cfg.Syncs,
		cmds:     cfg.CommandBuffers,
		teardown: cfg.Teardown,
		record:   cfg.Record,
		setup:    cfg.SetupSurface,
		state:    StateIdle,
	}, nil
}

// Attach registers the current surface on the surface tier and runs the
// surface setup hook. It must be called once before the first Render.
func (l *Loop) Attach() error {
	if l.attached {
		return nil
	}
	if err := l.registerSurface(); err != nil {
		return err
	}
	l.attached = true
	return nil
}

func (l *Loop) registerSurface() error {
	l.teardown.Surface.Push("swapchain", l.surface)
	if err := l.setup(l.surface, l.teardown.Surface); err != nil {
		err = fmt.Errorf("surface setup failed: %w", err)
		core.LogError("%s", err)
		return err
	}
	return nil
}

func (l *Loop) FrameCounter() uint64 { return l.frameCounter }

func (l *Loop) State() State { return l.state }

// Rebuilds reports how many times the surface has been rebuilt.
func (l *Loop) Rebuilds() int { return l.rebuilds }

// Slot is the frame-in-flight slot the next Render uses.
func (l *Loop) Slot() int {
	return int(l.frameCounter % uint64(len(l.syncs.Sets())))
}

// CommandBuffer returns the command buffer allocated for slot.
func (l *Loop) CommandBuffer(slot int) (CommandBuffer, error) {
	if slot < 0 || slot >= len(l.cmds) {
		err := fmt.Errorf("command buffer slot %d of %d: %w", slot, len(l.cmds), core.ErrIndexOutOfRange)
		core.LogError("%s", err)
		return nil, err
	}
	return l.cmds[slot], nil
}

// Render runs one iteration of the frame protocol. A surface that turned out
// of date or suboptimal is rebuilt before returning and the frame is retried
// by the next call; only fatal errors are returned.
func (l *Loop) Render() error {
	if !l.attached {
		if err := l.Attach(); err != nil {
			return err
		}
	}

	err := l.renderFrame()
	if errors.Is(err, core.ErrSurfaceInvalidated) {
		return l.recover(err)
	}
	if err != nil {
		l.state = StateIdle
		return err
	}
	l.frameCounter++
	l.state = StateIdle
	return nil
}

// invalidation carries what the rebuild path needs to know about its cause.
type invalidation struct {
	reason         string
	acquiredSubopt bool
}

func (i *invalidation) Error() string { return "surface invalidated: " + i.reason }

func (i *invalidation) Unwrap() error { return core.ErrSurfaceInvalidated }

func (l *Loop) renderFrame() error {
	slot := l.Slot()
	cmd, err := l.CommandBuffer(slot)
	if err != nil {
		return err
	}
	sync := l.syncs.Sets()[slot]

	l.state = StateWaitingOnFence
	if err := sync.InFlight.Wait(); err != nil {
		err = fmt.Errorf("failed to wait on in-flight fence for slot %d: %w", slot, err)
		core.LogError("%s", err)
		return err
	}

	l.state = StateAcquiring
	imageIndex, status, err := l.surface.Acquire(sync.ImageAvailable)
	if err != nil {
		return err
	}
	if status.NeedsRebuild() {
		return &invalidation{
			reason:         "acquire reported " + status.String(),
			acquiredSubopt: status == SurfaceSuboptimal,
		}
	}

	if err := sync.InFlight.Reset(); err != nil {
		err = fmt.Errorf("failed to reset in-flight fence for slot %d: %w", slot, err)
		core.LogError("%s", err)
		return err
	}

	l.state = StateRecording
	extent := l.surface.Extent()
	info := FrameInfo{
		Slot:        slot,
		FrameNumber: l.frameCounter,
		ImageIndex:  imageIndex,
		Extent:      extent,
		Viewport:    viewportFor(extent),
		Scissor:     scissorFor(extent),
	}
	if err := cmd.Reset(); err != nil {
		return err
	}
	if err := cmd.Begin(); err != nil {
		return err
	}
	if err := l.record(cmd, info); err != nil {
		err = fmt.Errorf("failed to record frame %d: %w", l.frameCounter, err)
		core.LogError("%s", err)
		return err
	}
	if err := cmd.End(); err != nil {
		return err
	}

	l.state = StateSubmitting
	if err := l.device.Submit(cmd, sync.ImageAvailable, sync.RenderFinished, sync.InFlight); err != nil {
		return err
	}

	l.state = StatePresenting
	status, err = l.surface.Present(imageIndex, sync.RenderFinished)
	if err != nil {
		return err
	}
	if status.NeedsRebuild() {
		return &invalidation{reason: "present reported " + status.String()}
	}
	if l.window.ResizePending() {
		return &invalidation{reason: "window resize pending"}
	}
	return nil
}

func (l *Loop) recover(cause error) error {
	l.state = StateInvalidated
	core.LogDebug("%s, rebuilding surface at frame %d", cause.Error(), l.frameCounter)

	for {
		w, h := l.window.FramebufferSize()
		if w != 0 && h != 0 {
			break
		}
		l.window.WaitEvents()
	}

	if err := l.device.WaitIdle(); err != nil {
		err = fmt.Errorf("failed to wait for device idle before rebuild: %w", err)
		core.LogError("%s", err)
		return err
	}

	l.teardown.Surface.Flush()
	if err := l.surface.Rebuild(); err != nil {
		return err
	}
	l.rebuilds++
	if err := l.registerSurface(); err != nil {
		return err
	}

	var inv *invalidation
	if errors.As(cause, &inv) && inv.acquiredSubopt {
		if err := l.syncs.RecycleImageAvailable(l.Slot()); err != nil {
			return err
		}
	}

	l.window.ClearResizePending()
	l.state = StateIdle
	return nil
}

// Shutdown blocks until the device is idle, then flushes the surface tier and
// the device tier in that order.
func (l *Loop) Shutdown() error {
	err := l.device.WaitIdle()
	if err != nil {
		err = fmt.Errorf("failed to wait for device idle on shutdown: %w", err)
		core.LogError("%s", err)
	}
	l.teardown.Flush()
	l.attached = false
	l.state = StateIdle
	return err
}
