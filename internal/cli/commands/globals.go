package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/melport/melport/mel"
)

// NewGlobalsCommand creates the globals command group.
func NewGlobalsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "globals",
		Short: "Read and write MEL global variables",
	}
	cmd.AddCommand(newGlobalsListCommand())
	cmd.AddCommand(newGlobalsGetCommand())
	cmd.AddCommand(newGlobalsSetCommand())
	return cmd
}

func newGlobalsListCommand() *cobra.Command {
	var typeFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List MEL global variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			names, err := sess.Globals().Names(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Type"})

			shown := 0
			for _, name := range names {
				typ, err := sess.Globals().TypeOf(cmd.Context(), name)
				if err != nil {
					// Not every env entry is a variable we can probe.
					continue
				}
				if typeFilter != "" && string(typ) != typeFilter {
					continue
				}
				t.AppendRow(table.Row{name, typ})
				shown++
			}
			t.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "(%d globals)\n", shown)
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFilter, "type", "", "only show globals of this MEL type")
	return cmd
}

func newGlobalsGetCommand() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Read a MEL global variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			var res *mel.Result
			if typeName != "" {
				res, err = sess.Globals().GetTyped(cmd.Context(), args[0], mel.Type(typeName))
			} else {
				res, err = sess.Globals().Get(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "declared MEL type (skips the type probe)")
	return cmd
}

func newGlobalsSetCommand() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Write a MEL global variable",
		Long: `Write a MEL global variable.

Array and vector values are comma-separated: melport globals set
gMyFloats "1.5, 2.5" --type float[]`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			name, raw := args[0], args[1]
			typ := mel.Type(typeName)
			if typeName == "" {
				typ, err = sess.Globals().TypeOf(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("cannot resolve type of %s, pass --type: %w", name, err)
				}
			}

			value, err := parseTypedValue(typ, raw)
			if err != nil {
				return fmt.Errorf("cannot parse %q as %s: %w", raw, typ, err)
			}
			return sess.Globals().SetTyped(cmd.Context(), name, typ, value)
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "declared MEL type (skips the type probe)")
	return cmd
}
