package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	_, err := New(Config{Encoding: "xml"})
	require.Error(t, err)
}

func TestNewAndWith(t *testing.T) {
	log, err := New(Config{Level: "error", Encoding: "json"})
	require.NoError(t, err)

	child := log.With("site", "roadmaps")
	assert.NotNil(t, child)
	child.Debug("dropped below level", "key", "value")
}

func TestNoOp(t *testing.T) {
	log := NewNoOp()
	log.Info("nothing")
	assert.Equal(t, log, log.With("k", "v"))
	assert.NoError(t, log.Sync())
}
