// Package host defines the boundary to the application hosting the MEL
// interpreter. A Host executes command text and delivers the diagnostic
// output the interpreter emits while executing it, the two halves the
// session layer builds its marshaling and error classification on.
package host

import (
	"context"

	"github.com/melport/melport/mel"
)

// MessageKind categorizes a diagnostic line emitted by the host.
type MessageKind int

const (
	MessageInfo MessageKind = iota
	MessageWarning
	MessageError
)

func (k MessageKind) String() string {
	switch k {
	case MessageInfo:
		return "info"
	case MessageWarning:
		return "warning"
	case MessageError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one line of diagnostic output from the host.
type Message struct {
	Text string
	Kind MessageKind
}

// CallbackID identifies a registered message callback. IDs are opaque.
type CallbackID string

// Runner executes one MEL command string on the host. The returned Result
// carries the host's result category tag. A non-nil error means the host
// reported failure; the failure's diagnostics arrive through message
// callbacks, not the error.
type Runner interface {
	Run(ctx context.Context, cmd string) (*mel.Result, error)
}

// TypedRunner is implemented by hosts that can decode a reply into a
// caller-declared result category. Transports that carry only text need
// the declared kind to tag results with anything richer than strings.
type TypedRunner interface {
	RunTyped(ctx context.Context, cmd string, kind mel.Kind) (*mel.Result, error)
}

// MessageSource registers transient callbacks for diagnostic output.
// The session installs a callback before each evaluation and removes it
// after, so registration must be cheap.
type MessageSource interface {
	AddMessageCallback(fn func(Message)) (CallbackID, error)
	RemoveMessageCallback(id CallbackID) error
}

// Host is a complete host-application connection.
type Host interface {
	Runner
	MessageSource
	Close() error
}
