package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestPairs(t *testing.T) {
	assert.Equal(t, []any{"a", 1, "c", 3}, pairs([]any{"a", 1, 2, "b", "c", 3}))
	assert.Equal(t, []any{"a", 1}, pairs([]any{"a", 1, "dangling"}))
	assert.Empty(t, pairs(nil))
}

func TestLogging_DoesNotPanic(t *testing.T) {
	SetLevel(LevelDebug)
	defer SetLevel(LevelInfo)

	assert.NotPanics(t, func() {
		Debug("debug line", "k", "v")
		Info("info line", "odd")
		Error("error line", nil, 42, "x")
	})
}
