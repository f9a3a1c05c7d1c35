package commands

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/melport/melport/session"
)

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change Maya session settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			return showSettings(cmd, sess)
		},
	}
	cmd.AddCommand(newSettingsSetCommand())
	return cmd
}

func showSettings(cmd *cobra.Command, sess *session.Session) error {
	ctx := cmd.Context()
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Setting", "Value"})

	appendRow := func(name string, value any, err error) {
		if err != nil {
			t.AppendRow(table.Row{name, fmt.Sprintf("<error: %v>", err)})
			return
		}
		t.AppendRow(table.Row{name, value})
	}

	scene, err := sess.Settings().SceneName(ctx)
	if scene == "" && err == nil {
		scene = "<untitled>"
	}
	appendRow("scene", scene, err)

	axis, err := sess.Settings().UpAxis(ctx)
	appendRow("up-axis", axis, err)

	ch, err := sess.Settings().ConstructionHistory(ctx)
	appendRow("construction-history", ch, err)

	cur, err := sess.Settings().CurrentTime(ctx)
	appendRow("current-time", cur, err)

	minT, err := sess.Settings().MinTime(ctx)
	appendRow("min-time", minT, err)

	maxT, err := sess.Settings().MaxTime(ctx)
	appendRow("max-time", maxT, err)

	t.Render()
	return nil
}

func newSettingsSetCommand() *cobra.Command {
	var rotateView bool

	cmd := &cobra.Command{
		Use:   "set <setting> <value>",
		Short: "Change a session setting",
		Long: `Change a session setting.

Settings: up-axis (y|z), construction-history (on|off), current-time,
min-time, max-time.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := connect(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			return applySetting(cmd, sess, args[0], args[1], rotateView)
		},
	}

	cmd.Flags().BoolVar(&rotateView, "rotate-view", false, "rotate the view when changing the up axis")
	return cmd
}

func applySetting(cmd *cobra.Command, sess *session.Session, name, value string, rotateView bool) error {
	ctx := cmd.Context()
	st := sess.Settings()

	switch name {
	case "up-axis":
		return st.SetUpAxis(ctx, value, rotateView)

	case "construction-history":
		state, err := parseToggle(value)
		if err != nil {
			return err
		}
		return st.SetConstructionHistory(ctx, state)

	case "current-time", "min-time", "max-time":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s needs a numeric value: %w", name, err)
		}
		switch name {
		case "current-time":
			return st.SetCurrentTime(ctx, t)
		case "min-time":
			return st.SetMinTime(ctx, t)
		default:
			return st.SetMaxTime(ctx, t)
		}

	default:
		return fmt.Errorf("unknown setting %q", name)
	}
}

func parseToggle(value string) (bool, error) {
	switch value {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", value)
}
