// Package starlark exposes a MEL session to Starlark scripts as a `mel`
// module, restoring the "scripting language drives MEL" experience for an
// embedded runtime: eval and call round-trip through the session, globals
// and option variables read and write through their typed surfaces.
package starlark

import (
	"context"
	"fmt"
	"maps"

	starlarkJSON "go.starlark.net/lib/json"
	starlarkMath "go.starlark.net/lib/math"
	starlarkTime "go.starlark.net/lib/time"
	starlarkLib "go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/melport/melport/mel"
	"github.com/melport/melport/scripting/internal/goconv"
	"github.com/melport/melport/session"
)

// ctxKey is the thread-local slot carrying the Go context into builtins.
const ctxKey = "melport.ctx"

func threadContext(thread *starlarkLib.Thread) context.Context {
	if ctx, ok := thread.Local(ctxKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// Module builds the `mel` Starlark module bound to a session.
func Module(sess *session.Session) *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "mel",
		Members: starlarkLib.StringDict{
			"eval":           starlarkLib.NewBuiltin("mel.eval", evalBuiltin(sess)),
			"call":           starlarkLib.NewBuiltin("mel.call", callBuiltin(sess)),
			"get_global":     starlarkLib.NewBuiltin("mel.get_global", getGlobalBuiltin(sess)),
			"set_global":     starlarkLib.NewBuiltin("mel.set_global", setGlobalBuiltin(sess)),
			"option_var":     starlarkLib.NewBuiltin("mel.option_var", optionVarBuiltin(sess)),
			"set_option_var": starlarkLib.NewBuiltin("mel.set_option_var", setOptionVarBuiltin(sess)),
			"current_time":   starlarkLib.NewBuiltin("mel.current_time", currentTimeBuiltin(sess)),
			"up_axis":        starlarkLib.NewBuiltin("mel.up_axis", upAxisBuiltin(sess)),
			"scene_name":     starlarkLib.NewBuiltin("mel.scene_name", sceneNameBuiltin(sess)),
		},
	}
}

type builtinFunc func(*starlarkLib.Thread, *starlarkLib.Builtin, starlarkLib.Tuple, []starlarkLib.Tuple) (starlarkLib.Value, error)

func evalBuiltin(sess *session.Session) builtinFunc {
	return func(thread *starlarkLib.Thread, b *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
		var cmd string
		if err := starlarkLib.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &cmd); err != nil {
			return nil, err
		}
		res, err := sess.Eval(threadContext(thread), cmd)
		if err != nil {
			return nil, err
		}
		return resultValue(res)
	}
}

// callBuiltin invokes a procedure; keyword arguments become command flags,
// which switches dispatch to flag style.
func callBuiltin(sess *session.Session) builtinFunc {
	return func(thread *starlarkLib.Thread, b *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
		if args.Len() < 1 {
			return nil, fmt.Errorf("%s: missing procedure name", b.Name())
		}
		proc, ok := starlarkLib.AsString(args.Index(0))
		if !ok {
			return nil, fmt.Errorf("%s: procedure name must be a string", b.Name())
		}

		goArgs := make([]any, 0, args.Len()-1)
		for i := 1; i < args.Len(); i++ {
			v, err := fromStarlarkValue(args.Index(i))
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", b.Name(), i, err)
			}
			goArgs = append(goArgs, v)
		}

		ctx := threadContext(thread)
		if len(kwargs) == 0 {
			res, err := sess.Call(ctx, proc, goArgs...)
			if err != nil {
				return nil, err
			}
			return resultValue(res)
		}

		flags := make(session.Flags, 0, len(kwargs))
		for _, kv := range kwargs {
			name, _ := starlarkLib.AsString(kv.Index(0))
			v, err := fromStarlarkValue(kv.Index(1))
			if err != nil {
				return nil, fmt.Errorf("%s: flag %s: %w", b.Name(), name, err)
			}
			flags = append(flags, session.F(name, v))
		}
		res, err := sess.CallFlags(ctx, proc, flags, goArgs...)
		if err != nil {
			return nil, err
		}
		return resultValue(res)
	}
}

func getGlobalBuiltin(sess *session.Session) builtinFunc {
	return func(thread *starlarkLib.Thread, b *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
		var name, typ string
		if err := starlarkLib.UnpackArgs(b.Name(), args, kwargs, "name", &name, "type?", &typ); err != nil {
			return nil, err
		}
		res, err := sess.Globals().GetTyped(threadContext(thread), name, mel.Type(typ))
		if err != nil {
			return nil, err
		}
		return resultValue(res)
	}
}

func setGlobalBuiltin(sess *session.Session) builtinFunc {
	return func(thread *starlarkLib.Thread, b *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
		var name, typ string
		var value starlarkLib.Value
		if err := starlarkLib.UnpackArgs(b.Name(), args, kwargs, "name", &name, "value", &value, "type?", &typ); err != nil {
			return nil, err
		}
		goVal, err := fromStarlarkValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		if err := sess.Globals().SetTyped(threadContext(thread), name, mel.Type(typ), goVal); err != nil {
			return nil, err
		}
		return starlarkLib.None, nil
	}
}

func optionVarBuiltin(sess *session.Session) builtinFunc {
	return func(thread *starlarkLib.Thread, b *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
		var key string
		if err := starlarkLib.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &key); err != nil {
			return nil, err
		}
		res, err := sess.OptionVars().Get(threadContext(thread), key)
		if err != nil {
			return nil, err
		}
		return resultValue(res)
	}
}

func setOptionVarBuiltin(sess *session.Session) builtinFunc {
	return func(thread *starlarkLib.Thread, b *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
		var key string
		var value starlarkLib.Value
		if err := starlarkLib.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &key, &value); err != nil {
			return nil, err
		}
		goVal, err := fromStarlarkValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlarkLib.None, goconv.SetOptionVar(threadContext(thread), sess, key, goVal)
	}
}

func currentTimeBuiltin(sess *session.Session) builtinFunc {
	return func(thread *starlarkLib.Thread, b *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
		ctx := threadContext(thread)
		if args.Len() == 0 {
			t, err := sess.Settings().CurrentTime(ctx)
			if err != nil {
				return nil, err
			}
			return starlarkLib.Float(t), nil
		}
		var t float64
		if err := starlarkLib.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &t); err != nil {
			return nil, err
		}
		return starlarkLib.None, sess.Settings().SetCurrentTime(ctx, t)
	}
}

func upAxisBuiltin(sess *session.Session) builtinFunc {
	return func(thread *starlarkLib.Thread, b *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
		axis, err := sess.Settings().UpAxis(threadContext(thread))
		if err != nil {
			return nil, err
		}
		return starlarkLib.String(axis), nil
	}
}

func sceneNameBuiltin(sess *session.Session) builtinFunc {
	return func(thread *starlarkLib.Thread, b *starlarkLib.Builtin, args starlarkLib.Tuple, kwargs []starlarkLib.Tuple) (starlarkLib.Value, error) {
		name, err := sess.Settings().SceneName(threadContext(thread))
		if err != nil {
			return nil, err
		}
		return starlarkLib.String(name), nil
	}
}

// predeclared returns the Starlark universe with the standard json, math
// and time modules plus the session's mel module.
func predeclared(sess *session.Session) starlarkLib.StringDict {
	universe := maps.Clone(starlarkLib.Universe)
	universe["json"] = starlarkJSON.Module
	universe["math"] = starlarkMath.Module
	universe["time"] = starlarkTime.Module
	universe["mel"] = Module(sess)
	return universe
}

// Run compiles and executes a Starlark script with the mel module bound to
// the session. It returns the script's global bindings.
func Run(ctx context.Context, sess *session.Session, name, src string) (starlarkLib.StringDict, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}

	globals := predeclared(sess)
	opts := &syntax.FileOptions{}
	f, err := opts.Parse(name, []byte(src), 0)
	if err != nil {
		return nil, fmt.Errorf("compilation error: %w", err)
	}
	prog, err := starlarkLib.FileProgram(f, globals.Has)
	if err != nil {
		return nil, fmt.Errorf("compilation error: %w", err)
	}

	thread := &starlarkLib.Thread{Name: name}
	thread.SetLocal(ctxKey, ctx)

	// Propagate context cancellation into the interpreter.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	out, err := prog.Init(thread, globals)
	if err != nil {
		return nil, fmt.Errorf("starlark execution error: %w", err)
	}
	out.Freeze()
	return out, nil
}
