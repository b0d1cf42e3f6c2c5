package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_ShipsJSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("production", &buf)
	require.NoError(t, err)

	log.Info("order materialized", zap.String("order_id", "abc"))
	_ = log.Sync()

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "order materialized", entry["msg"])
	assert.Equal(t, "abc", entry["order_id"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_Development(t *testing.T) {
	log, err := New("development", nil)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))
}
