// Package session is the user-facing API of the MEL bridge. A Session wraps
// a host connection and turns Go calls into MEL command text: procedure
// calls and flag-style commands are formatted through the mel package,
// executed on the host with a transient diagnostic callback installed, and
// failures are classified into the mel error taxonomy from the captured
// diagnostics.
package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"log/slog"

	"github.com/melport/melport/host"
	"github.com/melport/melport/internal/helpers"
	"github.com/melport/melport/mel"
)

// Session executes MEL on a host and exposes the global-variable,
// option-variable, and settings surfaces.
type Session struct {
	host host.Host

	globals    *Globals
	optionVars *OptionVars
	settings   *Settings

	logHandler slog.Handler
	logger     *slog.Logger
}

// Option configures a Session during construction.
type Option func(*Session) error

// WithLogHandler sets the slog handler used by the session and its
// sub-surfaces. A nil handler falls back to the default configuration.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *Session) error {
		s.logHandler = handler
		return nil
	}
}

// New creates a Session on top of an open host connection.
func New(h host.Host, opts ...Option) (*Session, error) {
	if h == nil {
		return nil, ErrHostNil
	}

	s := &Session{host: h}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("applying session option: %w", err)
		}
	}

	s.logHandler, s.logger = helpers.SetupLogger(s.logHandler, "session", "")
	s.globals = newGlobals(s)
	s.optionVars = &OptionVars{s: s}
	s.settings = &Settings{s: s}
	return s, nil
}

// Host returns the underlying host connection.
func (s *Session) Host() host.Host {
	return s.host
}

// Globals returns the MEL global-variable surface.
func (s *Session) Globals() *Globals {
	return s.globals
}

// OptionVars returns the host option-variable surface.
func (s *Session) OptionVars() *OptionVars {
	return s.optionVars
}

// Settings returns the application and scene settings surface.
func (s *Session) Settings() *Settings {
	return s.settings
}

// Close closes the underlying host connection.
func (s *Session) Close() error {
	return s.host.Close()
}

// Eval evaluates a string as a MEL command and returns the tagged result.
// On failure the returned error is a *mel.EvalError carrying the error
// diagnostics the host emitted during execution, classified into one of
// the mel category sentinels.
func (s *Session) Eval(ctx context.Context, cmd string) (*mel.Result, error) {
	return s.eval(ctx, cmd, mel.KindNone, false)
}

// eval is the marshaling pipeline shared by every host round trip:
// install a transient message callback, run the command, remove the
// callback, and on failure classify the accumulated error diagnostics.
// When typed is set and the host supports typed execution, the declared
// kind is used to decode the reply.
func (s *Session) eval(ctx context.Context, cmd string, kind mel.Kind, typed bool) (*mel.Result, error) {
	logger := s.logger.WithGroup("Eval")
	if strings.TrimSpace(cmd) == "" {
		return nil, ErrEmptyCommand
	}

	var mu sync.Mutex
	var diags []string
	id, err := s.host.AddMessageCallback(func(m host.Message) {
		if m.Kind == host.MessageError && m.Text != "" {
			mu.Lock()
			diags = append(diags, m.Text)
			mu.Unlock()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("installing message callback: %w", err)
	}
	defer func() {
		if rerr := s.host.RemoveMessageCallback(id); rerr != nil {
			logger.WarnContext(ctx, "failed to remove message callback", "id", id, "error", rerr)
		}
	}()

	var res *mel.Result
	if tr, ok := s.host.(host.TypedRunner); ok && typed {
		res, err = tr.RunTyped(ctx, cmd, kind)
	} else {
		res, err = s.host.Run(ctx, cmd)
	}
	if err != nil {
		mu.Lock()
		captured := make([]string, len(diags))
		copy(captured, diags)
		mu.Unlock()

		evalErr := mel.NewEvalError(cmd, captured)
		logger.DebugContext(ctx, "command failed", "cmd", cmd, "error", evalErr)
		return nil, evalErr
	}

	logger.DebugContext(ctx, "command executed", "cmd", cmd, "kind", res.Kind())
	return res, nil
}

// runTyped executes a command whose result category is known up front.
func (s *Session) runTyped(ctx context.Context, cmd string, kind mel.Kind) (*mel.Result, error) {
	return s.eval(ctx, cmd, kind, true)
}

// Call invokes a MEL procedure function-call style: proc(a1,a2,...), each
// argument formatted as a MEL literal.
func (s *Session) Call(ctx context.Context, proc string, args ...any) (*mel.Result, error) {
	if proc == "" {
		return nil, ErrEmptyName
	}
	strArgs := make([]string, len(args))
	for i, arg := range args {
		lit, err := mel.Format(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, proc, err)
		}
		strArgs[i] = lit
	}
	return s.Eval(ctx, proc+"("+strings.Join(strArgs, ",")+")")
}

// Flag is one flag-style command argument.
type Flag struct {
	Name  string
	Value any
}

// Flags is an ordered flag list. Order is preserved in the command text,
// so identical inputs always produce identical commands.
type Flags []Flag

// F is a convenience constructor for a Flag.
func F(name string, value any) Flag {
	return Flag{Name: name, Value: value}
}

// CallFlags invokes a MEL command flag style: cmd -flag v -flag2 v2 a1 a2.
// Used where a procedure call would pass keyword arguments.
func (s *Session) CallFlags(ctx context.Context, cmd string, flags Flags, args ...any) (*mel.Result, error) {
	if cmd == "" {
		return nil, ErrEmptyName
	}
	parts := []string{cmd}
	for _, f := range flags {
		lit, err := mel.Format(f.Value)
		if err != nil {
			return nil, fmt.Errorf("flag -%s of %s: %w", f.Name, cmd, err)
		}
		parts = append(parts, "-"+f.Name, lit)
	}
	for i, arg := range args {
		lit, err := mel.Format(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, cmd, err)
		}
		parts = append(parts, lit)
	}
	return s.Eval(ctx, strings.Join(parts, " "))
}

// TryEval is the MEL catch analog: it evaluates a command and reports
// success with a flag instead of an error. The result is retained on
// success; failures of any kind yield ok=false.
func (s *Session) TryEval(ctx context.Context, cmd string) (res *mel.Result, ok bool) {
	defer func() {
		if recover() != nil {
			res, ok = nil, false
		}
	}()
	res, err := s.Eval(ctx, cmd)
	if err != nil {
		return nil, false
	}
	return res, true
}

// Source sources a MEL script file on the host.
func (s *Session) Source(ctx context.Context, script string) error {
	_, err := s.Eval(ctx, `source "`+mel.EncodeString(script)+`";`)
	return err
}

// EvalFile reads a local script file and evaluates its content on the host.
func (s *Session) EvalFile(ctx context.Context, path string) (*mel.Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script file: %w", err)
	}
	return s.Eval(ctx, string(content))
}

// MPrint prints through the host's own print command, for output channels
// that only capture host-side printing. Arguments are joined with spaces
// and a trailing newline is added.
func (s *Session) MPrint(ctx context.Context, args ...any) error {
	text := strings.TrimSuffix(fmt.Sprintln(args...), "\n")
	lit, err := mel.Format(text + "\n")
	if err != nil {
		return err
	}
	_, err = s.Eval(ctx, "print ("+lit+");")
	return err
}

type diagConfig struct {
	showLineNumber bool
}

// DiagOption adjusts host-side diagnostic emission.
type DiagOption func(*diagConfig)

// WithLineNumber includes the script line number in the emitted diagnostic.
func WithLineNumber() DiagOption {
	return func(c *diagConfig) { c.showLineNumber = true }
}

// Error raises an error in the host's script editor. The host treats the
// error command itself as a failed command, so the returned error carries
// the emitted message.
func (s *Session) Error(ctx context.Context, msg string, opts ...DiagOption) error {
	return s.emitDiag(ctx, "error", msg, opts...)
}

// Warning emits a warning in the host's script editor.
func (s *Session) Warning(ctx context.Context, msg string, opts ...DiagOption) error {
	return s.emitDiag(ctx, "warning", msg, opts...)
}

// Trace emits a trace line in the host's script editor.
func (s *Session) Trace(ctx context.Context, msg string, opts ...DiagOption) error {
	return s.emitDiag(ctx, "trace", msg, opts...)
}

func (s *Session) emitDiag(ctx context.Context, cmd, msg string, opts ...DiagOption) error {
	var cfg diagConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	lit, err := mel.Format(msg)
	if err != nil {
		return err
	}
	text := cmd
	if cfg.showLineNumber {
		text += " -showLineNumber true"
	}
	_, err = s.Eval(ctx, text+" "+lit)
	return err
}

// WhatIs runs the host whatIs query for a name and returns its description.
func (s *Session) WhatIs(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	res, err := s.runTyped(ctx, `whatIs "`+mel.EncodeString(name)+`"`, mel.KindString)
	if err != nil {
		return "", err
	}
	return res.Str()
}

// Tokenize is refused: routing the MEL tokenize command through the
// boundary crashes the host. Split strings on the Go side instead.
func (s *Session) Tokenize(context.Context, ...string) error {
	return fmt.Errorf("%w: the MEL tokenize command crashes the host, use strings.Split", ErrUnsupported)
}
