// Package testutils provides table test scaffolding, error assertions
// and an in-memory logger shared by the package tests.
package testutils

import (
	"testing"

	"github.com/Brotsalat/zkill-ws-slack/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestCase is a table test entry expecting either a result of type T or an error, for input of type D.
type TestCase[T any, D any] struct {
	Name string
	// Expected is ignored if Error is set.
	Expected T
	Data     D
	// Error asserts the returned error. If nil, no error is expected.
	Error func(*testing.T, error)
}

// F returns a function for t.Run() that calls f with the test data and checks its outcome.
func (tc TestCase[T, D]) F(f func(D) (T, error)) func(t *testing.T) {
	return func(t *testing.T) {
		actual, err := f(tc.Data)

		if tc.Error != nil {
			tc.Error(t, err)
		} else {
			require.NoError(t, err)
			require.Equal(t, tc.Expected, actual)
		}
	}
}

// ConfigTestData is the input for configuration loading tests, from YAML, the environment, or both.
type ConfigTestData struct {
	Yaml string
	Env  map[string]string
}

// ErrorAs returns an assertion that the error has type T somewhere in its chain.
func ErrorAs[T error]() func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		var expected T
		require.ErrorAs(t, err, &expected)
	}
}

// ErrorContains returns an assertion on the error message.
func ErrorContains(expected string) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		require.ErrorContains(t, err, expected)
	}
}

// ErrorIs returns an assertion that expected is in the error chain.
func ErrorIs(expected error) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		require.ErrorIs(t, err, expected)
	}
}

// NewObservedLogger returns a Logger recording every entry at or above level in memory.
func NewObservedLogger(level zapcore.Level) (*logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)

	return logging.NewLogger(zap.New(core).Sugar()), logs
}
