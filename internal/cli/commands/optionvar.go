package commands

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/melport/melport/session"
)

// NewOptionVarCommand creates the optionvar command group.
func NewOptionVarCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "optionvar",
		Aliases: []string{"ov"},
		Short:   "Read and write Maya option variables",
	}
	cmd.AddCommand(newOptionVarListCommand())
	cmd.AddCommand(newOptionVarGetCommand())
	cmd.AddCommand(newOptionVarSetCommand())
	cmd.AddCommand(newOptionVarRemoveCommand())
	return cmd
}

func newOptionVarListCommand() *cobra.Command {
	var withValues bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List option variable keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			keys, err := sess.OptionVars().Keys(cmd.Context())
			if err != nil {
				return err
			}

			if !withValues {
				for _, key := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Key", "Value"})
			for _, key := range keys {
				res, err := sess.OptionVars().Get(cmd.Context(), key)
				if err != nil {
					t.AppendRow(table.Row{key, fmt.Sprintf("<error: %v>", err)})
					continue
				}
				t.AppendRow(table.Row{key, res.String()})
			}
			t.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "(%d option variables)\n", len(keys))
			return nil
		},
	}

	cmd.Flags().BoolVar(&withValues, "values", false, "also fetch each variable's value")
	return cmd
}

func newOptionVarGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read an option variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			exists, err := sess.OptionVars().Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("option variable %q does not exist", args[0])
			}
			res, err := sess.OptionVars().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newOptionVarSetCommand() *cobra.Command {
	var asString bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>...",
		Short: "Write an option variable",
		Long: `Write an option variable.

Values that parse as integers or floats are stored numerically unless
--string forces text. Multiple values store an array.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			return setOptionVarValues(cmd, sess, args[0], args[1:], asString)
		},
	}

	cmd.Flags().BoolVar(&asString, "string", false, "store the value as a string even if it looks numeric")
	return cmd
}

func setOptionVarValues(cmd *cobra.Command, sess *session.Session, key string, raw []string, asString bool) error {
	ctx := cmd.Context()
	ov := sess.OptionVars()

	if len(raw) == 1 {
		v := raw[0]
		if !asString {
			if n, err := strconv.Atoi(v); err == nil {
				return ov.SetInt(ctx, key, n)
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return ov.SetFloat(ctx, key, f)
			}
		}
		return ov.SetString(ctx, key, v)
	}

	if !asString {
		if ints, ok := parseAllInts(raw); ok {
			return ov.SetInts(ctx, key, ints)
		}
		if floats, ok := parseAllFloats(raw); ok {
			return ov.SetFloats(ctx, key, floats)
		}
	}
	return ov.SetStrings(ctx, key, raw)
}

func parseAllInts(raw []string) ([]int, bool) {
	out := make([]int, len(raw))
	for i, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func parseAllFloats(raw []string) ([]float64, bool) {
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func newOptionVarRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"remove"},
		Short:   "Remove an option variable",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			return sess.OptionVars().Remove(cmd.Context(), args[0])
		},
	}
}
