package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * ke := ctx.Data.(*KeyEvent)
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released.
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * se := ctx.Data.(*SystemEvent)
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The configuration file was reloaded.
	/* Context usage:
	 * cfg := ctx.Data.(*Config)
	 */
	EVENT_CODE_CONFIG_RELOADED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// Key code definitions. Only the keys the engine reacts to are listed.
type KeyCode uint16

const (
	KEY_ESCAPE KeyCode = 0x1B
	KEY_V      KeyCode = 0x56
)

type KeyEvent struct {
	KeyCode KeyCode
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext) bool

type registeredEvent struct {
	id       uint32
	callback FnOnEvent
}

// State structure.
type eventSystemState struct {
	mu sync.Mutex
	// Lookup table for event codes.
	registered map[SystemEventCode][]*registeredEvent
	nextID     uint32
}

var eventState *eventSystemState

func EventSystemInitialize() bool {
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
	return true
}

func EventSystemShutdown() error {
	// Objects pointed to by listeners should be destroyed on their own.
	eventState = nil
	return nil
}

/**
 * Register to listen for when events are sent with the provided code.
 * Returns the listener id used to unregister, and false when the event
 * system has not been initialized.
 */
func EventRegister(code SystemEventCode, onEvent FnOnEvent) (uint32, bool) {
	if eventState == nil || onEvent == nil {
		return 0, false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()

	eventState.nextID++
	eventState.registered[code] = append(eventState.registered[code], &registeredEvent{
		id:       eventState.nextID,
		callback: onEvent,
	})
	return eventState.nextID, true
}

/**
 * Unregister from listening for when events are sent with the provided code.
 * If no matching registration is found, this function returns false.
 */
func EventUnregister(code SystemEventCode, id uint32) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	defer eventState.mu.Unlock()

	events := eventState.registered[code]
	for i, e := range events {
		if e.id == id {
			eventState.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	// Not found.
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * Listeners run synchronously on the caller's goroutine.
 */
func EventFire(ctx EventContext) bool {
	if eventState == nil {
		return false
	}
	eventState.mu.Lock()
	events := make([]*registeredEvent, len(eventState.registered[ctx.Type]))
	copy(events, eventState.registered[ctx.Type])
	eventState.mu.Unlock()

	for _, e := range events {
		if e.callback(ctx) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}
