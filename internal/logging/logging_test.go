package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorrisk/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: " warning ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "trace", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewHandler_DefaultsToJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, config.LoggingConfig{Level: "info"})
	require.NoError(t, err)

	logger := slog.New(h)
	logger.Debug("hidden")
	logger.Info("registry loaded", "keys", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "registry loaded", line["msg"])
	assert.EqualValues(t, 3, line["keys"])
}

func TestNewHandler_TextWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, config.LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)

	slog.New(h).Debug("touched", "key", "allUsers")

	out := buf.String()
	assert.Contains(t, out, "touched")
	assert.Contains(t, out, "key=allUsers")
	assert.NotContains(t, out, "\033[")
}

func TestNewHandler_RejectsUnknownFormat(t *testing.T) {
	_, err := NewHandler(&bytes.Buffer{}, config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}
