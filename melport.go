// Package melport bridges Go programs to a running Maya session's MEL
// interpreter. Connect dials a command port and returns a Session wired to
// it; FromHost wraps any host implementation, which is how tests and
// alternative transports plug in.
//
// The subpackages carry the moving parts: commandport speaks the wire
// protocol, session builds and classifies commands, mel handles literal
// formatting and typed results, and scripting/* exposes the session to
// embedded Starlark, Risor and WebAssembly guests.
package melport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/melport/melport/commandport"
	"github.com/melport/melport/host"
	"github.com/melport/melport/session"
)

type config struct {
	dialTimeout time.Duration
	execTimeout time.Duration
	echoAddr    string
	logHandler  slog.Handler
	skipPing    bool
}

// Option configures Connect and FromHost.
type Option func(*config) error

// WithDialTimeout bounds the initial TCP connect.
func WithDialTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return fmt.Errorf("dial timeout must be positive, got %s", d)
		}
		c.dialTimeout = d
		return nil
	}
}

// WithExecTimeout bounds each command round trip when the caller's context
// carries no deadline of its own.
func WithExecTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return fmt.Errorf("exec timeout must be positive, got %s", d)
		}
		c.execTimeout = d
		return nil
	}
}

// WithEchoAddress attaches a second command port opened with echo output
// enabled, which streams script-editor output back as messages.
func WithEchoAddress(addr string) Option {
	return func(c *config) error {
		c.echoAddr = addr
		return nil
	}
}

// WithLogHandler sets the slog handler shared by the transport and session.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *config) error {
		if handler == nil {
			return errors.New("log handler is nil")
		}
		c.logHandler = handler
		return nil
	}
}

// WithoutPing skips the connectivity probe Connect normally runs after
// dialing.
func WithoutPing() Option {
	return func(c *config) error {
		c.skipPing = true
		return nil
	}
}

func applyOptions(opts []Option) (*config, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("error applying option: %w", err)
		}
	}
	return cfg, nil
}

// Connect dials a Maya command port and returns a session speaking to it.
// Unless WithoutPing is given, the link is verified with a trivial command
// before the session is handed back.
func Connect(ctx context.Context, addr string, opts ...Option) (*session.Session, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	var portOpts []commandport.Option
	if cfg.dialTimeout > 0 {
		portOpts = append(portOpts, commandport.WithDialTimeout(cfg.dialTimeout))
	}
	if cfg.execTimeout > 0 {
		portOpts = append(portOpts, commandport.WithIOTimeout(cfg.execTimeout))
	}
	if cfg.echoAddr != "" {
		portOpts = append(portOpts, commandport.WithEchoAddress(cfg.echoAddr))
	}
	if cfg.logHandler != nil {
		portOpts = append(portOpts, commandport.WithLogHandler(cfg.logHandler))
	}

	client, err := commandport.Dial(addr, portOpts...)
	if err != nil {
		return nil, err
	}

	if !cfg.skipPing {
		if err := client.Ping(ctx); err != nil {
			closeErr := client.Close()
			return nil, errors.Join(err, closeErr)
		}
	}

	sess, err := newSession(client, cfg)
	if err != nil {
		closeErr := client.Close()
		return nil, errors.Join(err, closeErr)
	}
	return sess, nil
}

// FromHost wraps an existing host in a session. The host's lifecycle belongs
// to the session from here on: closing the session closes the host.
func FromHost(h host.Host, opts ...Option) (*session.Session, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return newSession(h, cfg)
}

func newSession(h host.Host, cfg *config) (*session.Session, error) {
	var sessOpts []session.Option
	if cfg.logHandler != nil {
		sessOpts = append(sessOpts, session.WithLogHandler(cfg.logHandler))
	}
	return session.New(h, sessOpts...)
}
