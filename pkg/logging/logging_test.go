package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	log, atom, err := New(Options{Level: "DEBUG", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, zapcore.DebugLevel, atom.Level())

	_, atom, err = New(Options{})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, atom.Level())
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
	_, _, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
