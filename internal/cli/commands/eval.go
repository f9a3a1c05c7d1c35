package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewEvalCommand creates the eval command.
func NewEvalCommand() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "eval [mel command...]",
		Short: "Evaluate a MEL command",
		Long: `Evaluate a MEL command against the connected Maya session.

The command is taken from the arguments, from --file, or from stdin when
neither is given. Results print one array element per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScript(cmd, args, filePath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(script) == "" {
				return fmt.Errorf("no MEL command given")
			}

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

			res, err := sess.Eval(cmd.Context(), script)
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "read the MEL script from a file")
	return cmd
}

func readScript(cmd *cobra.Command, args []string, filePath string) (string, error) {
	if filePath != "" {
		if len(args) > 0 {
			return "", fmt.Errorf("cannot combine --file with command arguments")
		}
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read script: %w", err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	// Refuse to block on an interactive terminal with nothing piped in.
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", fmt.Errorf("no MEL command given (pass arguments, --file, or pipe a script)")
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}
