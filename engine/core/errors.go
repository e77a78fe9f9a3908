package core

import (
	"errors"
)

var (
	// ErrResourceCreation is returned when a platform object could not be created.
	ErrResourceCreation = errors.New("resource creation failed")
	// ErrSurfaceAcquire is returned when acquiring a drawable fails for a reason
	// other than the surface being out of date or suboptimal.
	ErrSurfaceAcquire = errors.New("failed to acquire swapchain image")
	// ErrPresent is returned when presentation fails for a reason other than the
	// surface being out of date or suboptimal.
	ErrPresent = errors.New("failed to present swapchain image")
	// ErrIndexOutOfRange flags a logic bug, e.g. a frame slot without a command buffer.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrSurfaceInvalidated signals that the swapchain must be rebuilt. The frame
	// loop recovers from it and never hands it to its callers.
	ErrSurfaceInvalidated = errors.New("swapchain out of date or suboptimal, rebuilding")
	ErrUnknown            = errors.New("unknown")
)
