package nats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/messaging"
)

var _ messaging.Publisher = (*Client)(nil)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.URL)
	assert.Equal(t, -1, cfg.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.ReconnectWait)
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	_, err := NewClient(cfg)
	require.Error(t, err)
}

func TestClient_ZeroValue(t *testing.T) {
	c := &Client{}
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())
}
