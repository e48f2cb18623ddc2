package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewBuildsBothModes(t *testing.T) {
	t.Parallel()
	for _, development := range []bool{true, false} {
		logger, err := New(Options{Development: development})
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Debug("logger ready")
	}
}

func TestNewHonorsLevel(t *testing.T) {
	t.Parallel()
	logger, err := New(Options{Level: "warn"})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewRejectsBadLevel(t *testing.T) {
	t.Parallel()
	_, err := New(Options{Level: "shouty"})
	require.Error(t, err)
}

func TestNewWithSampling(t *testing.T) {
	t.Parallel()
	logger, err := New(Options{SampleInitial: 100, SampleThereafter: 100})
	require.NoError(t, err)
	require.NotNil(t, logger)
}
