// Package frame drives the per-frame acquire/record/submit/present protocol over
// N frames in flight and owns the teardown ordering of swapchain-dependent and
// device-lifetime objects. It is independent of the graphics backend: the
// Vulkan implementation of these interfaces lives in renderer/vulkan.
package frame

// Fence is a CPU-observable completion signal set by the GPU.
type Fence interface {
	// Wait blocks without timeout until the fence is signaled.
	Wait() error
	// Reset returns the fence to the unsignaled state.
	Reset() error
	Signaled() bool
	Destroy()
}

// Semaphore is a GPU-side ordering signal.
type Semaphore interface {
	Destroy()
}

// SyncDevice creates synchronization primitives.
type SyncDevice interface {
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)
}

// CommandBuffer is a per-slot command buffer the recorder fills.
type CommandBuffer interface {
	Reset() error
	Begin() error
	End() error
}

// Device is the logical device and its graphics queue.
type Device interface {
	// WaitIdle blocks until all outstanding work on the device has finished.
	WaitIdle() error
	// Submit queues cmd so that it waits on wait at the colour attachment output
	// stage and signals both signal and fence on completion.
	Submit(cmd CommandBuffer, wait Semaphore, signal Semaphore, fence Fence) error
}

// SurfaceStatus is the non-fatal outcome of an acquire or present.
type SurfaceStatus uint8

const (
	SurfaceOptimal SurfaceStatus = iota
	// The surface can still be used but no longer matches exactly.
	SurfaceSuboptimal
	// The surface changed and presenting with it will fail.
	SurfaceOutOfDate
)

func (s SurfaceStatus) String() string {
	switch s {
	case SurfaceOptimal:
		return "optimal"
	case SurfaceSuboptimal:
		return "suboptimal"
	case SurfaceOutOfDate:
		return "out-of-date"
	default:
		return "unknown"
	}
}

// NeedsRebuild reports whether the surface must be renegotiated.
func (s SurfaceStatus) NeedsRebuild() bool {
	return s == SurfaceSuboptimal || s == SurfaceOutOfDate
}

// Extent is a size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// Surface is the presentation surface (swapchain) the loop renders into.
type Surface interface {
	// Acquire returns the index of the next drawable and arranges for signal to
	// be raised once it can be written.
	Acquire(signal Semaphore) (uint32, SurfaceStatus, error)
	// Present hands imageIndex back to the compositor once wait is raised.
	Present(imageIndex uint32, wait Semaphore) (SurfaceStatus, error)
	// Rebuild destroys and recreates the surface with its stored configuration
	// against the current window size.
	Rebuild() error
	Destroy()
	Extent() Extent
	ImageCount() uint32
}

// Window is the part of the windowing layer the loop depends on.
type Window interface {
	FramebufferSize() (width, height uint32)
	ResizePending() bool
	ClearResizePending()
	// WaitEvents blocks until the next platform event arrives.
	WaitEvents()
}

// Viewport mirrors the dynamic viewport state set by the recorder.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// Rect2D is a scissor rectangle.
type Rect2D struct {
	X, Y   int32
	Extent Extent
}

// FrameInfo is what the recorder needs to fill a command buffer.
type FrameInfo struct {
	// Frame slot in [0, framesInFlight).
	Slot int
	// Monotonic frame number.
	FrameNumber uint64
	ImageIndex  uint32
	Extent      Extent
	Viewport    Viewport
	Scissor     Rect2D
}

// RecordFunc fills cmd for the drawable at info.ImageIndex. The command buffer
// is already begun and is ended by the loop once RecordFunc returns.
type RecordFunc func(cmd CommandBuffer, info FrameInfo) error

// SurfaceSetupFunc (re)creates everything that depends on the surface, such as
// framebuffers, and pushes the matching teardown onto the surface tier.
type SurfaceSetupFunc func(surface Surface, teardown *DeletionQueue) error

func viewportFor(extent Extent) Viewport {
	return Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

func scissorFor(extent Extent) Rect2D {
	return Rect2D{X: 0, Y: 0, Extent: extent}
}
