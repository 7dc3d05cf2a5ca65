package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/certledger/internal/logging"
	"github.com/nhle/certledger/internal/model"
)

func TestNew_JSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "certledger.log")
	logger, err := logging.New(model.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("scan finished", zap.Int("matched", 1))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "scan finished", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 1, entry["matched"])
}

func TestNew_ConsoleDebug(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(model.LoggingConfig{Level: "debug", Format: "console", Output: path})
	require.NoError(t, err)

	logger.Debug("message rejected", zap.String("reason", "code mismatch"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DEBUG")
	assert.Contains(t, string(data), "code mismatch")
}

func TestNew_Rejects(t *testing.T) {
	t.Parallel()

	_, err := logging.New(model.LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)

	_, err = logging.New(model.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
