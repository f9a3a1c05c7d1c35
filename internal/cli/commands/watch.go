package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/melport/melport/internal/config"
	"github.com/melport/melport/session"
)

// debounce window before re-sourcing after a change burst.
const watchDebounce = 200 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-source MEL scripts when they change",
		Long: `Watch a directory and re-source .mel files in the Maya session
whenever they are written. Useful while iterating on procedures in an
editor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer func() { _ = watcher.Close() }()

			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for .mel changes (Ctrl-C to stop)\n", dir)
			return watchLoop(cmd.Context(), cmd, sess, watcher)
		},
	}
}

func watchLoop(ctx context.Context, cmd *cobra.Command, sess *session.Session, watcher *fsnotify.Watcher) error {
	logger := config.GetLogger(ctx)

	var debounceTimer *time.Timer
	pending := map[string]struct{}{}
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".mel" {
				continue
			}

			// Accumulate across the burst; the drain happens when the
			// timer fires, so an event extending the window never loses
			// files collected by an earlier one.
			pending[event.Name] = struct{}{}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			clear(pending)
			sort.Strings(changed)
			for _, name := range changed {
				fmt.Fprintf(cmd.OutOrStdout(), "Sourcing %s\n", filepath.Base(name))
				if _, err := sess.EvalFile(ctx, name); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watch error", "error", err)
		}
	}
}
