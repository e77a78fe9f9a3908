package frame

import (
	"fmt"

	"github.com/spaghettifunk/vkwrap/engine/core"
)

// SyncSet is the synchronization state of one frame slot.
type SyncSet struct {
	ImageAvailable Semaphore
	RenderFinished Semaphore
	InFlight       Fence
}

// SyncManager creates the per-slot sync sets and owns every object it created
// on a single flat list, so they can only be released together.
type SyncManager struct {
	device SyncDevice
	owned  []Destroyer
	sets   []SyncSet
}

func NewSyncManager(device SyncDevice) *SyncManager {
	return &SyncManager{device: device}
}

// CreateFrameSyncs creates n sync sets. Fences start signaled so the first wait
// on every slot returns immediately.
func (m *SyncManager) CreateFrameSyncs(n int) ([]SyncSet, error) {
	if n < 1 {
		err := fmt.Errorf("frames in flight must be at least 1, got %d: %w", n, core.ErrIndexOutOfRange)
		core.LogError("%s", err)
		return nil, err
	}
	sets := make([]SyncSet, n)
	for i := 0; i < n; i++ {
		imageAvailable, err := m.createSemaphore()
		if err != nil {
			return nil, err
		}
		renderFinished, err := m.createSemaphore()
		if err != nil {
			return nil, err
		}
		fence, err := m.device.CreateFence(true)
		if err != nil {
			err = fmt.Errorf("failed to create in-flight fence %d: %v: %w", i, err, core.ErrResourceCreation)
			core.LogError("%s", err)
			return nil, err
		}
		m.owned = append(m.owned, fence)
		sets[i] = SyncSet{
			ImageAvailable: imageAvailable,
			RenderFinished: renderFinished,
			InFlight:       fence,
		}
	}
	m.sets = sets
	return sets, nil
}

func (m *SyncManager) createSemaphore() (Semaphore, error) {
	s, err := m.device.CreateSemaphore()
	if err != nil {
		err = fmt.Errorf("failed to create semaphore: %v: %w", err, core.ErrResourceCreation)
		core.LogError("%s", err)
		return nil, err
	}
	m.owned = append(m.owned, s)
	return s, nil
}

// RecycleImageAvailable swaps the imageAvailable semaphore of slot for a fresh
// one. The old semaphore stays on the ownership list until DestroyAll since its
// signal from the presentation engine may still be pending, and no device
// wait covers it. The list grows by one per suboptimal acquire, and each one
// is followed by a rebuild that normally clears the suboptimal state.
func (m *SyncManager) RecycleImageAvailable(slot int) error {
	if slot < 0 || slot >= len(m.sets) {
		return fmt.Errorf("sync slot %d of %d: %w", slot, len(m.sets), core.ErrIndexOutOfRange)
	}
	s, err := m.createSemaphore()
	if err != nil {
		return err
	}
	m.sets[slot].ImageAvailable = s
	return nil
}

// Sets returns the live sync sets. Entries reflect recycled semaphores.
func (m *SyncManager) Sets() []SyncSet {
	return m.sets
}

// Owned reports how many objects are waiting for DestroyAll.
func (m *SyncManager) Owned() int {
	return len(m.owned)
}

// DestroyAll releases every created object. Calling it again does nothing.
func (m *SyncManager) DestroyAll() {
	for i := len(m.owned) - 1; i >= 0; i-- {
		m.owned[i].Destroy()
	}
	m.owned = nil
	m.sets = nil
}
