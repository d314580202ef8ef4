package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggingFromConfig(t *testing.T) {
	t.Run("invalid output", func(t *testing.T) {
		_, err := NewLoggingFromConfig("zkill-ws-slack", Config{Output: "syslog"})
		require.Error(t, err)
	})

	t.Run("unwritable file", func(t *testing.T) {
		_, err := NewLoggingFromConfig("zkill-ws-slack", Config{
			Output: FILE,
			File:   filepath.Join(t.TempDir(), "missing", "zkill.log"),
		})
		require.Error(t, err)
	})

	t.Run("file output and child levels", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "zkill.log")
		l, err := NewLoggingFromConfig("zkill-ws-slack", Config{
			Level:   zapcore.InfoLevel,
			Output:  FILE,
			File:    file,
			Options: Options{"feed": zapcore.DebugLevel},
		})
		require.NoError(t, err)

		l.GetLogger().Infow("Starting")
		l.GetChildLogger("feed").Debugw("Received frame")
		l.GetChildLogger("webhook").Debugw("Sending payload")
		l.GetChildLogger("webhook").Warnw("Delivery failed", Error(errors.New("status 500")))
		l.Sync()

		raw, err := os.ReadFile(file)
		require.NoError(t, err)
		content := string(raw)

		require.Contains(t, content, "Starting")
		require.Contains(t, content, "zkill-ws-slack.feed")
		require.Contains(t, content, "Received frame")
		require.NotContains(t, content, "Sending payload")
		require.Contains(t, content, "Delivery failed")
		require.Contains(t, content, "status 500")
	})

	t.Run("child loggers are cached", func(t *testing.T) {
		l, err := NewLoggingFromConfig("zkill-ws-slack", Config{Output: CONSOLE})
		require.NoError(t, err)
		require.Same(t, l.GetChildLogger("feed"), l.GetChildLogger("feed"))
		require.NotSame(t, l.GetChildLogger("feed"), l.GetChildLogger("webhook"))
	})
}

func TestError(t *testing.T) {
	withStack := errors.New("boom")
	require.Equal(t, "boom", Error(withStack).Interface.(error).Error())
	_, isStackTracer := Error(withStack).Interface.(stackTracer)
	require.False(t, isStackTracer)

	plain := os.ErrNotExist
	require.Equal(t, plain, Error(plain).Interface)
}
