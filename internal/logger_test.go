package internal

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerProdEmitsJSONWithServiceName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "prod", "info")

	logger.Info("reconcile succeeded", "subscription_id", "sub_1")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "skadi", line["service"])
	assert.Equal(t, "reconcile succeeded", line["msg"])
	assert.Contains(t, line, "time")
}

func TestNewLoggerDevEmitsText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "dev", "debug")

	logger.Debug("plan catalog loaded")

	out := buf.String()
	assert.Contains(t, out, "plan catalog loaded")
	assert.Contains(t, out, "service=skadi")

	var line map[string]interface{}
	assert.Error(t, json.Unmarshal(buf.Bytes(), &line), "dev output is not JSON")
}

func TestNewLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "dev", "warn")

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}
