// Package meltest provides in-memory host.Host implementations for testing
// the marshaling, dispatch, and classification layers without a live host.
package meltest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/melport/melport/host"
	"github.com/melport/melport/mel"
)

// Response scripts what the fake host does when a command matches.
type Response struct {
	// Result is returned on success. A nil Result is reported as a none
	// result, the way the host reports commands with no return value.
	Result *mel.Result

	// Diagnostics are published to message callbacks as error-kind lines
	// before the command returns, emulating the host's output callback.
	Diagnostics []string

	// Warnings are published as warning-kind lines.
	Warnings []string

	// Fail makes the command report failure after emitting Diagnostics.
	Fail bool
}

type handler struct {
	match func(cmd string) bool
	resp  Response
}

// Host is a scriptable in-memory host. Commands are matched against
// registered handlers in registration order; unmatched commands succeed
// with no result. Every executed command is recorded for assertions.
type Host struct {
	mu       sync.Mutex
	hub      *host.CallbackHub
	handlers []handler
	commands []string
	closed   bool
}

// NewHost creates an empty scriptable host.
func NewHost() *Host {
	return &Host{hub: host.NewCallbackHub()}
}

// Handle registers a response for every command containing substr.
func (h *Host) Handle(substr string, resp Response) {
	h.HandleFunc(func(cmd string) bool {
		return strings.Contains(cmd, substr)
	}, resp)
}

// HandleFunc registers a response with a custom command matcher.
func (h *Host) HandleFunc(match func(cmd string) bool, resp Response) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler{match: match, resp: resp})
}

// Run executes one command against the scripted handlers.
func (h *Host) Run(ctx context.Context, cmd string) (*mel.Result, error) {
	return h.RunTyped(ctx, cmd, mel.KindNone)
}

// RunTyped behaves like Run; the declared kind is ignored because scripted
// responses already carry their tags.
func (h *Host) RunTyped(ctx context.Context, cmd string, _ mel.Kind) (*mel.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, fmt.Errorf("meltest host is closed")
	}
	h.commands = append(h.commands, cmd)
	var resp Response
	matched := false
	for _, hd := range h.handlers {
		if hd.match(cmd) {
			resp = hd.resp
			matched = true
			break
		}
	}
	h.mu.Unlock()

	// Diagnostics flow through the callback path before the failure
	// return, exactly as a live host delivers them.
	for _, line := range resp.Warnings {
		h.hub.Publish(host.Message{Text: line, Kind: host.MessageWarning})
	}
	for _, line := range resp.Diagnostics {
		h.hub.Publish(host.Message{Text: line, Kind: host.MessageError})
	}

	if resp.Fail {
		return nil, fmt.Errorf("command failed: %s", cmd)
	}
	if !matched || resp.Result == nil {
		return mel.NilResult(), nil
	}
	return resp.Result, nil
}

// AddMessageCallback implements host.MessageSource.
func (h *Host) AddMessageCallback(fn func(host.Message)) (host.CallbackID, error) {
	return h.hub.AddMessageCallback(fn)
}

// RemoveMessageCallback implements host.MessageSource.
func (h *Host) RemoveMessageCallback(id host.CallbackID) error {
	return h.hub.RemoveMessageCallback(id)
}

// Publish emits a message to all registered callbacks, for tests that
// exercise unsolicited host output.
func (h *Host) Publish(msg host.Message) {
	h.hub.Publish(msg)
}

// Close marks the host closed; further Run calls fail.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Commands returns a copy of every executed command, in order.
func (h *Host) Commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.commands))
	copy(out, h.commands)
	return out
}

// LastCommand returns the most recently executed command, or "".
func (h *Host) LastCommand() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.commands) == 0 {
		return ""
	}
	return h.commands[len(h.commands)-1]
}

// CallbackCount reports how many message callbacks are currently
// registered, for callback-hygiene assertions.
func (h *Host) CallbackCount() int {
	return h.hub.Len()
}
