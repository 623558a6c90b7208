package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_TimeoutFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want time.Duration
	}{
		{"unset", "", 30 * time.Second},
		{"seconds", "5", 5 * time.Second},
		{"duration", "2m", 2 * time.Minute},
		{"invalid falls back", "soon", 30 * time.Second},
		{"negative falls back", "-3", 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PORTAL_HTTP_TIMEOUT", tt.env)
			assert.Equal(t, tt.want, DefaultConfig().Timeout)
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 7 * time.Second
	client := NewHTTPClient(&cfg)

	assert.Equal(t, 7*time.Second, client.Timeout)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, cfg.ResponseHeaderTimeout, transport.ResponseHeaderTimeout)
	assert.Equal(t, 4, transport.MaxIdleConnsPerHost)
}
