package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/melport/melport/internal/config"
	"github.com/melport/melport/session"
)

const (
	replPrompt         = "mel> "
	replContinuePrompt = " ..> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive MEL shell",
		Long: `Open an interactive MEL shell against the connected Maya session.

Lines ending with a backslash continue on the next line. Dot-commands
control the shell itself; type .help for the list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			cfg := config.GetConfig(cmd.Context())
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          replPrompt,
				HistoryFile:     cfg.HistoryFile,
				InterruptPrompt: "^C",
				EOFPrompt:       ".quit",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize REPL: %w", err)
			}
			defer func() { _ = rl.Close() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", cfg.Address)
			fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
			fmt.Fprintln(cmd.OutOrStdout())

			return replLoop(cmd, sess, rl)
		},
	}
}

func replLoop(cmd *cobra.Command, sess *session.Session, rl *readline.Instance) error {
	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			quit := handleDotCommand(cmd, sess, line)
			if quit {
				return nil
			}
			continue
		}

		// A trailing backslash continues the command on the next line.
		if cont, ok := strings.CutSuffix(line, "\\"); ok {
			buf.WriteString(cont)
			buf.WriteString("\n")
			rl.SetPrompt(replContinuePrompt)
			continue
		}
		buf.WriteString(line)
		rl.SetPrompt(replPrompt)

		script := buf.String()
		buf.Reset()

		res, err := sess.Eval(cmd.Context(), script)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		renderResult(cmd.OutOrStdout(), res)
	}
}

// handleDotCommand executes a shell control command. Returns true when the
// shell should exit.
func handleDotCommand(cmd *cobra.Command, sess *session.Session, line string) bool {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	parts := strings.Fields(line)

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintln(out, "  .help            Show this help")
		fmt.Fprintln(out, "  .whatis <name>   Describe a procedure or variable")
		fmt.Fprintln(out, "  .globals         List MEL global variables")
		fmt.Fprintln(out, "  .clear           Clear the screen")
		fmt.Fprintln(out, "  .quit            Exit the shell")
		fmt.Fprintln(out, "Anything else is evaluated as MEL; end a line with \\ to continue it.")

	case ".whatis":
		if len(parts) < 2 {
			fmt.Fprintln(errOut, "Usage: .whatis <name>")
			return false
		}
		desc, err := sess.WhatIs(cmd.Context(), parts[1])
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		fmt.Fprintln(out, desc)

	case ".globals":
		names, err := sess.Globals().Names(cmd.Context())
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}

	case ".clear":
		fmt.Fprint(out, "\033[H\033[2J")

	default:
		fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}
