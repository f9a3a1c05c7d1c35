// Package wasm runs WebAssembly guests against a MEL session through the
// Extism plugin runtime. The guest reaches the session through host functions
// in the "melport" namespace: mel_eval takes a raw command string, mel_call a
// JSON procedure-call envelope. Both return a JSON result envelope so guests
// in any source language can decode the reply.
package wasm

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	extismSDK "github.com/extism/go-sdk"
	"github.com/tetratelabs/wazero"

	"github.com/melport/melport/internal/helpers"
	"github.com/melport/melport/mel"
	"github.com/melport/melport/scripting/internal/goconv"
	"github.com/melport/melport/session"
)

var (
	ErrSessionNil    = errors.New("session is nil")
	ErrContentEmpty  = errors.New("wasm content is empty")
	ErrRunnerClosed  = errors.New("runner is closed")
	ErrCompileFailed = errors.New("wasm compilation failed")
)

// hostNamespace is the import namespace guests link the host functions from.
const hostNamespace = "melport"

type config struct {
	entryPoint string
	enableWASI bool
	logHandler slog.Handler
}

// Option configures a Runner.
type Option func(*config) error

// WithEntryPoint sets the exported guest function Run invokes.
func WithEntryPoint(name string) Option {
	return func(c *config) error {
		if name == "" {
			return fmt.Errorf("entry point name is empty")
		}
		c.entryPoint = name
		return nil
	}
}

// WithWASI toggles WASI support for the guest. Enabled by default since most
// toolchains target wasi.
func WithWASI(enabled bool) Option {
	return func(c *config) error {
		c.enableWASI = enabled
		return nil
	}
}

// WithLogHandler sets the slog handler for runner logging.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *config) error {
		if handler == nil {
			return fmt.Errorf("log handler is nil")
		}
		c.logHandler = handler
		return nil
	}
}

// Runner holds a compiled plugin bound to a session. Each Run creates a
// fresh instance, so a Runner is safe for concurrent use.
type Runner struct {
	plugin     *extismSDK.CompiledPlugin
	entryPoint string
	checksum   string

	closeOnce sync.Once
	closeErr  error
	closed    bool
	mu        sync.Mutex

	logHandler slog.Handler
	logger     *slog.Logger
}

// New compiles wasmBytes into a reusable plugin with the session's host
// functions registered.
func New(ctx context.Context, sess *session.Session, wasmBytes []byte, opts ...Option) (*Runner, error) {
	if sess == nil {
		return nil, ErrSessionNil
	}
	if len(wasmBytes) == 0 {
		return nil, ErrContentEmpty
	}

	cfg := &config{
		entryPoint: "run",
		enableWASI: true,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("error applying option: %w", err)
		}
	}
	handler, logger := helpers.SetupLogger(cfg.logHandler, "wasm", "Runner")

	manifest := extismSDK.Manifest{
		Wasm: []extismSDK.Wasm{
			extismSDK.WasmData{Data: wasmBytes},
		},
	}
	pluginConfig := extismSDK.PluginConfig{
		EnableWasi:    cfg.enableWASI,
		RuntimeConfig: wazero.NewRuntimeConfig(),
	}

	plugin, err := extismSDK.NewCompiledPlugin(ctx, manifest, pluginConfig, hostFunctions(sess))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompileFailed, err)
	}

	checksum := helpers.ShortChecksum(wasmBytes)
	logger.DebugContext(ctx, "compiled wasm module", "checksum", checksum, "sizeBytes", len(wasmBytes))

	return &Runner{
		plugin:     plugin,
		entryPoint: cfg.entryPoint,
		checksum:   checksum,
		logHandler: handler,
		logger:     logger,
	}, nil
}

// Run instantiates the plugin and invokes the entry point with input as the
// guest's input bytes, returning the guest's output bytes.
func (r *Runner) Run(ctx context.Context, input []byte) ([]byte, error) {
	logger := r.logger.WithGroup("Run")

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRunnerClosed
	}
	r.mu.Unlock()

	instanceConfig := extismSDK.PluginInstanceConfig{
		ModuleConfig: wazero.NewModuleConfig().
			WithSysWalltime().
			WithSysNanotime().
			WithRandSource(rand.Reader),
	}
	instance, err := r.plugin.Instance(ctx, instanceConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin instance: %w", err)
	}
	defer func() {
		if err := instance.Close(ctx); err != nil {
			logger.WarnContext(ctx, "failed to close plugin instance", "error", err)
		}
	}()

	exit, output, err := instance.CallWithContext(ctx, r.entryPoint, input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("execution failed: %w", err)
	}
	if exit != 0 {
		return nil, fmt.Errorf("guest returned non-zero exit code: %d", exit)
	}
	logger.DebugContext(ctx, "guest call complete", "entryPoint", r.entryPoint, "outputBytes", len(output))
	return output, nil
}

// Close releases the compiled plugin. Safe to call more than once.
func (r *Runner) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.closeErr = r.plugin.Close(ctx)
	})
	return r.closeErr
}

func (r *Runner) String() string {
	return "wasm.Runner[" + r.checksum + "]"
}

// resultEnvelope is the JSON reply both host functions write back to the
// guest. Exactly one of Kind or Error is present.
type resultEnvelope struct {
	Kind     string `json:"kind,omitempty"`
	Value    any    `json:"value,omitempty"`
	Error    string `json:"error,omitempty"`
	Category string `json:"category,omitempty"`
}

// callEnvelope is the JSON request a guest sends to mel_call.
type callEnvelope struct {
	Proc  string         `json:"proc"`
	Args  []any          `json:"args,omitempty"`
	Flags map[string]any `json:"flags,omitempty"`
}

func successEnvelope(res *mel.Result) resultEnvelope {
	return resultEnvelope{
		Kind:  res.Kind().String(),
		Value: goconv.FromResult(res),
	}
}

func errorEnvelope(err error) resultEnvelope {
	return resultEnvelope{
		Error:    err.Error(),
		Category: categoryName(err),
	}
}

// categoryName maps a command failure onto a stable label guests can switch
// on without parsing diagnostic text themselves.
func categoryName(err error) string {
	switch {
	case errors.Is(err, mel.ErrUnknownProcedure):
		return "unknown_procedure"
	case errors.Is(err, mel.ErrArgument):
		return "argument"
	case errors.Is(err, mel.ErrConversion):
		return "conversion"
	case errors.Is(err, mel.ErrEval):
		return "eval"
	default:
		return "internal"
	}
}

func hostFunctions(sess *session.Session) []extismSDK.HostFunction {
	evalFn := extismSDK.NewHostFunctionWithStack(
		"mel_eval",
		func(ctx context.Context, p *extismSDK.CurrentPlugin, stack []uint64) {
			cmd, err := p.ReadString(stack[0])
			if err != nil {
				stack[0] = writeEnvelope(p, errorEnvelope(err))
				return
			}
			res, err := sess.Eval(ctx, cmd)
			if err != nil {
				stack[0] = writeEnvelope(p, errorEnvelope(err))
				return
			}
			stack[0] = writeEnvelope(p, successEnvelope(res))
		},
		[]extismSDK.ValueType{extismSDK.ValueTypeI64},
		[]extismSDK.ValueType{extismSDK.ValueTypeI64},
	)
	evalFn.SetNamespace(hostNamespace)

	callFn := extismSDK.NewHostFunctionWithStack(
		"mel_call",
		func(ctx context.Context, p *extismSDK.CurrentPlugin, stack []uint64) {
			raw, err := p.ReadString(stack[0])
			if err != nil {
				stack[0] = writeEnvelope(p, errorEnvelope(err))
				return
			}
			var req callEnvelope
			if err := json.Unmarshal([]byte(raw), &req); err != nil {
				stack[0] = writeEnvelope(p, errorEnvelope(fmt.Errorf("invalid call envelope: %w", err)))
				return
			}
			res, err := dispatchCall(ctx, sess, req)
			if err != nil {
				stack[0] = writeEnvelope(p, errorEnvelope(err))
				return
			}
			stack[0] = writeEnvelope(p, successEnvelope(res))
		},
		[]extismSDK.ValueType{extismSDK.ValueTypeI64},
		[]extismSDK.ValueType{extismSDK.ValueTypeI64},
	)
	callFn.SetNamespace(hostNamespace)

	return []extismSDK.HostFunction{evalFn, callFn}
}

// dispatchCall routes a call envelope onto the session. Flags present means
// flag-style dispatch, with flags emitted in sorted name order so the command
// text is stable.
func dispatchCall(ctx context.Context, sess *session.Session, req callEnvelope) (*mel.Result, error) {
	if len(req.Flags) == 0 {
		return sess.Call(ctx, req.Proc, req.Args...)
	}
	names := make([]string, 0, len(req.Flags))
	for name := range req.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	flags := make(session.Flags, 0, len(names))
	for _, name := range names {
		flags = append(flags, session.F(name, req.Flags[name]))
	}
	return sess.CallFlags(ctx, req.Proc, flags, req.Args...)
}

// writeEnvelope marshals the envelope into guest memory and returns its
// offset. Marshal failures fall back to a minimal hand-built error object.
func writeEnvelope(p *extismSDK.CurrentPlugin, env resultEnvelope) uint64 {
	payload, err := json.Marshal(env)
	if err != nil {
		payload = []byte(`{"error":"failed to encode reply","category":"internal"}`)
	}
	off, err := p.WriteBytes(payload)
	if err != nil {
		return 0
	}
	return off
}
