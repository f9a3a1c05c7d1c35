package helpers

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	t.Run("nil handler gets a default", func(t *testing.T) {
		t.Parallel()
		handler, logger := SetupLogger(nil, "session", "")
		require.NotNil(t, handler)
		require.NotNil(t, logger)
	})

	t.Run("group name wraps the handler", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		base := slog.NewTextHandler(&buf, nil)

		handler, logger := SetupLogger(base, "commandport", "Eval")
		assert.Equal(t, base, handler)

		logger.Info("dialing", "addr", "127.0.0.1:7001")
		assert.Contains(t, buf.String(), "Eval.addr=127.0.0.1:7001")
	})

	t.Run("no group leaves attrs at top level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		base := slog.NewTextHandler(&buf, nil)

		_, logger := SetupLogger(base, "commandport", "")
		logger.Info("dialing", "addr", "127.0.0.1:7001")
		assert.Contains(t, buf.String(), "addr=127.0.0.1:7001")
	})
}
