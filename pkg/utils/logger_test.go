package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewSugaredLogger(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{name: "production", verbose: false, wantDebug: false},
		{name: "verbose", verbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewSugaredLogger("queuectl", tt.verbose)
			require.NoError(t, err)
			require.NotNil(t, log)

			core := log.Desugar().Core()
			assert.Equal(t, tt.wantDebug, core.Enabled(zapcore.DebugLevel))
			assert.True(t, core.Enabled(zapcore.InfoLevel))
			assert.Equal(t, "queuectl", log.Desugar().Name())
		})
	}
}

func TestNewSugaredLogger_Unnamed(t *testing.T) {
	log, err := NewSugaredLogger("", false)
	require.NoError(t, err)
	assert.Empty(t, log.Desugar().Name())
}
