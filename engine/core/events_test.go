package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEventSystem(t *testing.T) {
	t.Helper()
	require.True(t, EventSystemInitialize())
	t.Cleanup(func() { _ = EventSystemShutdown() })
}

func TestEventFireStopsAtFirstHandler(t *testing.T) {
	withEventSystem(t)

	var calls []string
	_, ok := EventRegister(EVENT_CODE_RESIZED, func(ctx EventContext) bool {
		calls = append(calls, "first")
		se := ctx.Data.(*SystemEvent)
		return se.WindowWidth == 0
	})
	require.True(t, ok)
	_, ok = EventRegister(EVENT_CODE_RESIZED, func(ctx EventContext) bool {
		calls = append(calls, "second")
		return true
	})
	require.True(t, ok)

	handled := EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{WindowWidth: 640, WindowHeight: 480}})
	assert.True(t, handled)
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	handled = EventFire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{}})
	assert.True(t, handled)
	assert.Equal(t, []string{"first"}, calls)
}

func TestEventUnregister(t *testing.T) {
	withEventSystem(t)

	fired := 0
	id, ok := EventRegister(EVENT_CODE_APPLICATION_QUIT, func(EventContext) bool {
		fired++
		return false
	})
	require.True(t, ok)

	assert.False(t, EventFire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))
	assert.Equal(t, 1, fired)

	assert.True(t, EventUnregister(EVENT_CODE_APPLICATION_QUIT, id))
	assert.False(t, EventUnregister(EVENT_CODE_APPLICATION_QUIT, id))
	EventFire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	assert.Equal(t, 1, fired)
}

func TestEventSystemNotInitialized(t *testing.T) {
	_, ok := EventRegister(EVENT_CODE_KEY_PRESSED, func(EventContext) bool { return true })
	assert.False(t, ok)
	assert.False(t, EventFire(EventContext{Type: EVENT_CODE_KEY_PRESSED}))

	require.True(t, EventSystemInitialize())
	assert.False(t, EventSystemInitialize(), "double initialization is rejected")
	_ = EventSystemShutdown()
}
