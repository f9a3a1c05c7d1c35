// Package commands implements the melport subcommands.
package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/melport/melport"
	"github.com/melport/melport/host"
	"github.com/melport/melport/internal/config"
	"github.com/melport/melport/mel"
	"github.com/melport/melport/session"
)

// connect dials the configured command port and returns a live session. The
// caller owns the session and must Close it.
func connect(cmd *cobra.Command) (*session.Session, error) {
	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}

	opts := []melport.Option{
		melport.WithDialTimeout(cfg.DialTimeout),
		melport.WithExecTimeout(cfg.ExecTimeout),
		melport.WithLogHandler(config.GetLogger(ctx).Handler()),
	}
	if cfg.EchoAddress != "" {
		opts = append(opts, melport.WithEchoAddress(cfg.EchoAddress))
	}

	sess, err := melport.Connect(ctx, cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Address, err)
	}
	return sess, nil
}

// printMessages subscribes to the session's message stream and mirrors it to
// w, the way the script editor would show it. Returns an unsubscribe func.
func printMessages(sess *session.Session, w io.Writer) (func(), error) {
	id, err := sess.Host().AddMessageCallback(func(msg host.Message) {
		switch msg.Kind {
		case host.MessageError:
			fmt.Fprintf(w, "// Error: %s //\n", msg.Text)
		case host.MessageWarning:
			fmt.Fprintf(w, "// Warning: %s //\n", msg.Text)
		default:
			fmt.Fprintln(w, msg.Text)
		}
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sess.Host().RemoveMessageCallback(id) }, nil
}

// renderResult writes a command result for human consumption: arrays one
// element per line, scalars as-is, nil results nothing at all.
func renderResult(w io.Writer, res *mel.Result) {
	if res == nil || res.IsNil() {
		return
	}
	if strs, err := res.Strings(); err == nil {
		for _, s := range strs {
			fmt.Fprintln(w, s)
		}
		return
	}
	switch v := res.Interface().(type) {
	case []int:
		for _, n := range v {
			fmt.Fprintln(w, n)
		}
	case []float64:
		for _, f := range v {
			fmt.Fprintln(w, strconv.FormatFloat(f, 'g', -1, 64))
		}
	case []mel.Vector:
		for _, vec := range v {
			fmt.Fprintln(w, vec.String())
		}
	case []mel.Matrix:
		for _, m := range v {
			fmt.Fprintln(w, m.String())
		}
	default:
		fmt.Fprintln(w, res.String())
	}
}

// parseTypedValue parses a raw CLI string into the Go value matching a MEL
// variable type. Array types split on commas.
func parseTypedValue(typ mel.Type, raw string) (any, error) {
	if typ.IsArray() {
		parts := splitArray(raw)
		switch typ.Elem() {
		case mel.TypeInt:
			out := make([]int, len(parts))
			for i, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out[i] = n
			}
			return out, nil
		case mel.TypeFloat:
			out := make([]float64, len(parts))
			for i, p := range parts {
				f, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out[i] = f
			}
			return out, nil
		case mel.TypeString:
			return parts, nil
		}
		return nil, fmt.Errorf("cannot parse %s values", typ)
	}

	switch typ {
	case mel.TypeInt:
		return strconv.Atoi(raw)
	case mel.TypeFloat:
		return strconv.ParseFloat(raw, 64)
	case mel.TypeString:
		return raw, nil
	case mel.TypeVector:
		parts := splitArray(raw)
		if len(parts) != 3 {
			return nil, fmt.Errorf("vector needs 3 components, got %d", len(parts))
		}
		var vec mel.Vector
		for i, dst := range []*float64{&vec.X, &vec.Y, &vec.Z} {
			f, err := strconv.ParseFloat(parts[i], 64)
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", i, err)
			}
			*dst = f
		}
		return vec, nil
	}
	return nil, fmt.Errorf("cannot parse %s values", typ)
}

func splitArray(raw string) []string {
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
