package host

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownCallback is returned when removing a callback ID that was never
// registered or was already removed.
var ErrUnknownCallback = errors.New("unknown message callback ID")

// CallbackHub is a reusable MessageSource implementation for transports and
// test doubles: register, remove, publish. Safe for concurrent use.
type CallbackHub struct {
	mu        sync.RWMutex
	callbacks map[CallbackID]func(Message)
}

// NewCallbackHub creates an empty hub.
func NewCallbackHub() *CallbackHub {
	return &CallbackHub{
		callbacks: make(map[CallbackID]func(Message)),
	}
}

// AddMessageCallback registers fn and returns its removal ID.
func (h *CallbackHub) AddMessageCallback(fn func(Message)) (CallbackID, error) {
	if fn == nil {
		return "", errors.New("message callback is nil")
	}
	id := CallbackID(uuid.NewString())
	h.mu.Lock()
	h.callbacks[id] = fn
	h.mu.Unlock()
	return id, nil
}

// RemoveMessageCallback unregisters the callback with the given ID.
func (h *CallbackHub) RemoveMessageCallback(id CallbackID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.callbacks[id]; !ok {
		return ErrUnknownCallback
	}
	delete(h.callbacks, id)
	return nil
}

// Publish delivers msg to every registered callback, synchronously, in
// unspecified order.
func (h *CallbackHub) Publish(msg Message) {
	h.mu.RLock()
	fns := make([]func(Message), 0, len(h.callbacks))
	for _, fn := range h.callbacks {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(msg)
	}
}

// Len reports the number of registered callbacks.
func (h *CallbackHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.callbacks)
}
