package session

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"slices"
	"strings"

	"github.com/melport/melport/mel"
)

// Settings exposes process-wide host application settings and the few
// scene-dependent values that are simple property-style glue: construction
// history, up axis, current time, playback range, and the scene name.
type Settings struct {
	s *Session
}

// ConstructionHistory reports whether construction history is enabled.
func (st *Settings) ConstructionHistory(ctx context.Context) (bool, error) {
	res, err := st.s.runTyped(ctx, "constructionHistory -q -tgl", mel.KindInt)
	if err != nil {
		return false, err
	}
	return res.Bool()
}

// SetConstructionHistory toggles construction history.
func (st *Settings) SetConstructionHistory(ctx context.Context, state bool) error {
	v := 0
	if state {
		v = 1
	}
	_, err := st.s.Eval(ctx, fmt.Sprintf("constructionHistory -tgl %d;", v))
	return err
}

// UpAxis returns the world up axis, y or z.
func (st *Settings) UpAxis(ctx context.Context) (string, error) {
	res, err := st.s.runTyped(ctx, "upAxis -q -ax", mel.KindString)
	if err != nil {
		return "", err
	}
	return res.Str()
}

// SetUpAxis sets the world up axis. Only y and z are accepted,
// case-insensitively. When rotateView is set the host rotates the view to
// keep the scene visually upright.
func (st *Settings) SetUpAxis(ctx context.Context, axis string, rotateView bool) error {
	axis = strings.ToLower(strings.TrimSpace(axis))
	if axis != "y" && axis != "z" {
		return fmt.Errorf("%w: got %q", ErrBadUpAxis, axis)
	}
	cmd := fmt.Sprintf("upAxis -ax %q", axis)
	if rotateView {
		cmd += " -rv"
	}
	_, err := st.s.Eval(ctx, cmd+";")
	return err
}

// CurrentTime returns the current animation time.
func (st *Settings) CurrentTime(ctx context.Context) (float64, error) {
	res, err := st.s.runTyped(ctx, "currentTime -q", mel.KindFloat)
	if err != nil {
		return 0, err
	}
	return res.Float()
}

// SetCurrentTime moves the current animation time.
func (st *Settings) SetCurrentTime(ctx context.Context, t float64) error {
	lit, err := mel.Format(t)
	if err != nil {
		return err
	}
	_, err = st.s.Eval(ctx, "currentTime "+lit+";")
	return err
}

// MinTime returns the playback range start.
func (st *Settings) MinTime(ctx context.Context) (float64, error) {
	res, err := st.s.runTyped(ctx, "playbackOptions -q -minTime", mel.KindFloat)
	if err != nil {
		return 0, err
	}
	return res.Float()
}

// SetMinTime sets the playback range start.
func (st *Settings) SetMinTime(ctx context.Context, t float64) error {
	lit, err := mel.Format(t)
	if err != nil {
		return err
	}
	_, err = st.s.Eval(ctx, "playbackOptions -minTime "+lit+";")
	return err
}

// MaxTime returns the playback range end.
func (st *Settings) MaxTime(ctx context.Context) (float64, error) {
	res, err := st.s.runTyped(ctx, "playbackOptions -q -maxTime", mel.KindFloat)
	if err != nil {
		return 0, err
	}
	return res.Float()
}

// SetMaxTime sets the playback range end.
func (st *Settings) SetMaxTime(ctx context.Context, t float64) error {
	lit, err := mel.Format(t)
	if err != nil {
		return err
	}
	_, err = st.s.Eval(ctx, "playbackOptions -maxTime "+lit+";")
	return err
}

// SceneName returns the current scene file path, empty for an unsaved scene.
func (st *Settings) SceneName(ctx context.Context) (string, error) {
	res, err := st.s.runTyped(ctx, "file -q -sn", mel.KindString)
	if err != nil {
		return "", err
	}
	return res.Str()
}

// ConditionExists reports whether a named scriptJob condition exists. This
// is the condition type used by isTrue and scriptJob, not the condition
// node.
func (st *Settings) ConditionExists(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, ErrEmptyName
	}
	res, err := st.s.runTyped(ctx, "scriptJob -listConditions", mel.KindStringArray)
	if err != nil {
		return false, err
	}
	conds, err := res.Strings()
	if err != nil {
		return false, err
	}
	return slices.Contains(conds, name), nil
}

// Getenv reads an environment variable of the host process. The session may
// run in a different process than the host, so this goes over the boundary.
func (st *Settings) Getenv(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	res, err := st.s.runTyped(ctx, `getenv "`+mel.EncodeString(name)+`"`, mel.KindString)
	if err != nil {
		return "", err
	}
	return res.Str()
}

// Putenv sets an environment variable of the host process.
func (st *Settings) Putenv(ctx context.Context, name, value string) error {
	if name == "" {
		return ErrEmptyName
	}
	cmd := fmt.Sprintf(`putenv "%s" "%s";`, mel.EncodeString(name), mel.EncodeString(value))
	_, err := st.s.Eval(ctx, cmd)
	return err
}

// User returns the local account name. No host round trip is made.
func (st *Settings) User() (string, error) {
	u, err := user.Current()
	if err != nil {
		if name := os.Getenv("USER"); name != "" {
			return name, nil
		}
		return "", fmt.Errorf("determining current user: %w", err)
	}
	return u.Username, nil
}

// Hostname returns the local machine name. No host round trip is made.
func (st *Settings) Hostname() (string, error) {
	return os.Hostname()
}
