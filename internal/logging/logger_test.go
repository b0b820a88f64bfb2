package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sl.log")
	logger, err := New(Config{Level: "debug", Encoding: "json", OutputPath: path})
	require.NoError(t, err)
	logger.Info("greenlit", zap.String("ref", "ACT-1001"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"INFO"`)
	assert.Contains(t, string(data), `"msg":"greenlit"`)
	assert.Contains(t, string(data), `"timestamp"`)
	assert.Contains(t, string(data), `"ref":"ACT-1001"`)
}

func TestNewFallsBackOnBadLevel(t *testing.T) {
	logger, err := New(Config{Level: "shouty", Encoding: "console", OutputPath: filepath.Join(t.TempDir(), "x.log")})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
