package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/melport/melport/scripting/risor"
	"github.com/melport/melport/scripting/starlark"
	"github.com/melport/melport/scripting/wasm"
	"github.com/melport/melport/session"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var (
		entryPoint string
		inputFile  string
	)

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script against the Maya session",
		Long: `Run a script against the connected Maya session.

The runtime is chosen by extension: .star and .py run as Starlark,
.risor as Risor, .wasm as a WebAssembly guest. MEL scripts (.mel) are
sourced directly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			unsubscribe, err := printMessages(sess, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer unsubscribe()

			return runScript(cmd, sess, args[0], entryPoint, inputFile)
		},
	}

	cmd.Flags().StringVar(&entryPoint, "entry-point", "run", "exported function to call in a wasm guest")
	cmd.Flags().StringVar(&inputFile, "input", "", "file passed as input to a wasm guest")
	return cmd
}

func runScript(cmd *cobra.Command, sess *session.Session, path, entryPoint, inputFile string) error {
	ctx := cmd.Context()

	switch ext := filepath.Ext(path); ext {
	case ".star", ".py":
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = starlark.Run(ctx, sess, filepath.Base(path), string(src))
		return err

	case ".risor":
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out, err := risor.Run(ctx, sess, string(src))
		if err != nil {
			return err
		}
		if out != nil {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
		return nil

	case ".wasm":
		wasmBytes, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		runner, err := wasm.New(ctx, sess, wasmBytes, wasm.WithEntryPoint(entryPoint))
		if err != nil {
			return err
		}
		defer func() { _ = runner.Close(ctx) }()

		var input []byte
		if inputFile != "" {
			input, err = os.ReadFile(inputFile)
			if err != nil {
				return err
			}
		}
		output, err := runner.Run(ctx, input)
		if err != nil {
			return err
		}
		if len(output) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
		}
		return nil

	case ".mel":
		res, err := sess.EvalFile(ctx, path)
		if err != nil {
			return err
		}
		renderResult(cmd.OutOrStdout(), res)
		return nil

	default:
		return fmt.Errorf("unsupported script extension %q", ext)
	}
}
