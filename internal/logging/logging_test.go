package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	_ = logger.Sync()

	logger, err = New(true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	_ = logger.Sync()
}

func TestAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := Adapt(zap.New(core))

	log.Debug("config file loaded", "path", "app.yaml")
	log.Info("pool sized", "maxConn", 90)
	log.Warn("rollback failed", "error", "conn closed")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, "config file loaded", entries[0].Message)
	assert.Equal(t, "app.yaml", entries[0].ContextMap()["path"])
	assert.Equal(t, zap.InfoLevel, entries[1].Level)
	assert.Equal(t, int64(90), entries[1].ContextMap()["maxConn"])
	assert.Equal(t, zap.WarnLevel, entries[2].Level)
}
