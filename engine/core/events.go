package core

import (
	"sync"
)

// EventContext carries the payload of a fired event.
type EventContext struct {
	Data struct {
		I64 [2]int64
		F64 [2]float64
		C   [2]string
	}
	// Payload holds structured data such as a benchmark result.
	Payload interface{}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// A benchmark session left the idle state.
	/* Context usage:
	 * string tier = data.Data.C[0];
	 * i64 object_count = data.Data.I64[0];
	 */
	EVENT_CODE_BENCHMARK_STARTED SystemEventCode = 0x10

	// Periodic progress of a sampling loop.
	/* Context usage:
	 * f64 percent = data.Data.F64[0];
	 * f64 fps = data.Data.F64[1];
	 * i64 samples = data.Data.I64[0];
	 */
	EVENT_CODE_BENCHMARK_PROGRESS SystemEventCode = 0x11

	// A session finished, either naturally or after a stop request.
	/* Context usage:
	 * i64 score = data.Data.I64[0];
	 * string grade = data.Data.C[0];
	 * Payload = *benchmark.BenchmarkResult
	 */
	EVENT_CODE_BENCHMARK_FINISHED SystemEventCode = 0x12

	// A model finished loading.
	/* Context usage:
	 * string path = data.Data.C[0];
	 * string format = data.Data.C[1];
	 * Payload = *assets.ModelMetadata
	 */
	EVENT_CODE_MODEL_LOADED SystemEventCode = 0x20

	// A watched model changed on disk.
	/* Context usage:
	 * string path = data.Data.C[0];
	 */
	EVENT_CODE_MODEL_CHANGED SystemEventCode = 0x21

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events synchronously to registered listeners.
type EventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 * @param code The event code to listen for.
 * @param listener A listener instance. Can be nil.
 * @param onEvent The callback function to be invoked when the event code is fired.
 * @returns true if the event is successfully registered; otherwise false.
 */
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if onEvent == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code.
 * @returns true if the event is successfully unregistered; otherwise false.
 */
func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * A panicking listener is logged and skipped.
 * @returns true if handled, otherwise false.
 */
func (b *EventBus) Fire(code SystemEventCode, sender interface{}, context EventContext) bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	events := make([]*registeredEvent, len(b.registered[code]))
	copy(events, b.registered[code])
	b.mu.RUnlock()

	for _, e := range events {
		if b.dispatch(code, sender, e, context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}

func (b *EventBus) dispatch(code SystemEventCode, sender interface{}, e *registeredEvent, context EventContext) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			LogError("event listener for code %d panicked: %v", code, r)
			handled = false
		}
	}()
	return e.callback(code, sender, e.listener, context)
}

func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = make(map[SystemEventCode][]*registeredEvent)
}
