// Package risor exposes a MEL session to Risor scripts. A `mel` global maps
// the session surface into builtins, so scripts can round-trip commands,
// globals and option variables through the live host.
package risor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	risorLib "github.com/risor-io/risor"
	risorCompiler "github.com/risor-io/risor/compiler"
	risorErrors "github.com/risor-io/risor/errz"
	"github.com/risor-io/risor/object"
	risorParser "github.com/risor-io/risor/parser"

	"github.com/melport/melport/mel"
	"github.com/melport/melport/scripting/internal/goconv"
	"github.com/melport/melport/session"
)

var (
	ErrSessionNil    = errors.New("session is nil")
	ErrCompileFailed = errors.New("risor compilation failed")
)

// melGlobal is the name scripts use to reach the session.
const melGlobal = "mel"

// Module builds the `mel` Risor object bound to a session.
func Module(sess *session.Session) object.Object {
	return object.NewMap(map[string]object.Object{
		"eval":           object.NewBuiltin("mel.eval", evalBuiltin(sess)),
		"call":           object.NewBuiltin("mel.call", callBuiltin(sess)),
		"call_flags":     object.NewBuiltin("mel.call_flags", callFlagsBuiltin(sess)),
		"get_global":     object.NewBuiltin("mel.get_global", getGlobalBuiltin(sess)),
		"set_global":     object.NewBuiltin("mel.set_global", setGlobalBuiltin(sess)),
		"option_var":     object.NewBuiltin("mel.option_var", optionVarBuiltin(sess)),
		"set_option_var": object.NewBuiltin("mel.set_option_var", setOptionVarBuiltin(sess)),
		"current_time":   object.NewBuiltin("mel.current_time", currentTimeBuiltin(sess)),
		"up_axis":        object.NewBuiltin("mel.up_axis", upAxisBuiltin(sess)),
		"scene_name":     object.NewBuiltin("mel.scene_name", sceneNameBuiltin(sess)),
	})
}

type builtinFunc = object.BuiltinFunction

func argString(name string, args []object.Object, i int) (string, object.Object) {
	if i >= len(args) {
		return "", object.NewError(fmt.Errorf("%s: missing argument %d", name, i+1))
	}
	s, ok := args[i].Interface().(string)
	if !ok {
		return "", object.NewError(fmt.Errorf("%s: argument %d must be a string", name, i+1))
	}
	return s, nil
}

func resultObject(res *mel.Result) object.Object {
	v := goconv.FromResult(res)
	if v == nil {
		return object.Nil
	}
	return object.FromGoType(v)
}

func evalBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		cmd, errObj := argString("mel.eval", args, 0)
		if errObj != nil {
			return errObj
		}
		res, err := sess.Eval(ctx, cmd)
		if err != nil {
			return object.NewError(err)
		}
		return resultObject(res)
	}
}

func callBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		proc, errObj := argString("mel.call", args, 0)
		if errObj != nil {
			return errObj
		}
		goArgs := make([]any, 0, len(args)-1)
		for _, a := range args[1:] {
			goArgs = append(goArgs, a.Interface())
		}
		res, err := sess.Call(ctx, proc, goArgs...)
		if err != nil {
			return object.NewError(err)
		}
		return resultObject(res)
	}
}

// callFlagsBuiltin invokes a command in flag style: the second argument is a
// map of flag names to values, remaining arguments are positional. Flags are
// emitted in sorted name order so the command text is stable.
func callFlagsBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		proc, errObj := argString("mel.call_flags", args, 0)
		if errObj != nil {
			return errObj
		}
		if len(args) < 2 {
			return object.NewError(fmt.Errorf("mel.call_flags: missing flag map"))
		}
		raw, ok := args[1].Interface().(map[string]any)
		if !ok {
			return object.NewError(fmt.Errorf("mel.call_flags: second argument must be a map"))
		}

		names := make([]string, 0, len(raw))
		for name := range raw {
			names = append(names, name)
		}
		sort.Strings(names)
		flags := make(session.Flags, 0, len(names))
		for _, name := range names {
			flags = append(flags, session.F(name, raw[name]))
		}

		goArgs := make([]any, 0, len(args)-2)
		for _, a := range args[2:] {
			goArgs = append(goArgs, a.Interface())
		}
		res, err := sess.CallFlags(ctx, proc, flags, goArgs...)
		if err != nil {
			return object.NewError(err)
		}
		return resultObject(res)
	}
}

func getGlobalBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		name, errObj := argString("mel.get_global", args, 0)
		if errObj != nil {
			return errObj
		}
		var typ mel.Type
		if len(args) > 1 {
			t, errObj := argString("mel.get_global", args, 1)
			if errObj != nil {
				return errObj
			}
			typ = mel.Type(t)
		}
		res, err := sess.Globals().GetTyped(ctx, name, typ)
		if err != nil {
			return object.NewError(err)
		}
		return resultObject(res)
	}
}

func setGlobalBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		name, errObj := argString("mel.set_global", args, 0)
		if errObj != nil {
			return errObj
		}
		if len(args) < 2 {
			return object.NewError(fmt.Errorf("mel.set_global: missing value"))
		}
		var typ mel.Type
		if len(args) > 2 {
			t, errObj := argString("mel.set_global", args, 2)
			if errObj != nil {
				return errObj
			}
			typ = mel.Type(t)
		}
		if err := sess.Globals().SetTyped(ctx, name, typ, args[1].Interface()); err != nil {
			return object.NewError(err)
		}
		return object.Nil
	}
}

func optionVarBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		key, errObj := argString("mel.option_var", args, 0)
		if errObj != nil {
			return errObj
		}
		res, err := sess.OptionVars().Get(ctx, key)
		if err != nil {
			return object.NewError(err)
		}
		return resultObject(res)
	}
}

func setOptionVarBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		key, errObj := argString("mel.set_option_var", args, 0)
		if errObj != nil {
			return errObj
		}
		if len(args) < 2 {
			return object.NewError(fmt.Errorf("mel.set_option_var: missing value"))
		}
		if err := goconv.SetOptionVar(ctx, sess, key, args[1].Interface()); err != nil {
			return object.NewError(err)
		}
		return object.Nil
	}
}

func currentTimeBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) == 0 {
			t, err := sess.Settings().CurrentTime(ctx)
			if err != nil {
				return object.NewError(err)
			}
			return object.NewFloat(t)
		}
		var t float64
		switch v := args[0].Interface().(type) {
		case float64:
			t = v
		case int64:
			t = float64(v)
		default:
			return object.NewError(fmt.Errorf("mel.current_time: argument must be a number"))
		}
		if err := sess.Settings().SetCurrentTime(ctx, t); err != nil {
			return object.NewError(err)
		}
		return object.Nil
	}
}

func upAxisBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		axis, err := sess.Settings().UpAxis(ctx)
		if err != nil {
			return object.NewError(err)
		}
		return object.NewString(axis)
	}
}

func sceneNameBuiltin(sess *session.Session) builtinFunc {
	return func(ctx context.Context, args ...object.Object) object.Object {
		name, err := sess.Settings().SceneName(ctx)
		if err != nil {
			return object.NewError(err)
		}
		return object.NewString(name)
	}
}

// Compile parses and compiles a script into bytecode, declaring the mel
// global so it resolves at eval time. Syntax errors carry the parser's
// friendly rendering.
func Compile(ctx context.Context, src string) (*risorCompiler.Code, error) {
	ast, err := risorParser.Parse(ctx, src)
	if err != nil {
		errMsg := err.Error()
		var friendlyErr risorErrors.FriendlyError
		if errors.As(err, &friendlyErr) {
			errMsg = friendlyErr.FriendlyErrorMessage()
		}
		return nil, fmt.Errorf("%w: %s", ErrCompileFailed, errMsg)
	}

	cfg := risorLib.NewConfig()
	globalNames := append(cfg.GlobalNames(), melGlobal)
	code, err := risorCompiler.Compile(ast, risorCompiler.WithGlobalNames(globalNames))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCompileFailed, err)
	}
	return code, nil
}

// Run compiles and executes a Risor script with the mel global bound to the
// session, returning the script's final value as plain Go data.
func Run(ctx context.Context, sess *session.Session, src string) (any, error) {
	if sess == nil {
		return nil, ErrSessionNil
	}

	code, err := Compile(ctx, src)
	if err != nil {
		return nil, err
	}

	result, err := risorLib.EvalCode(ctx, code, risorLib.WithGlobal(melGlobal, Module(sess)))
	if err != nil {
		return nil, fmt.Errorf("risor execution error: %w", err)
	}
	if result == nil {
		return nil, nil
	}
	switch result.Type() {
	case object.ERROR:
		return nil, fmt.Errorf("error returned from script: %s", result.Inspect())
	case object.FUNCTION:
		return nil, fmt.Errorf("function object returned from script: %s", result.Inspect())
	}
	return result.Interface(), nil
}
