package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, "notifications", cfg.DynamoTables.Notifications)
	assert.Equal(t, 20, cfg.Realtime.UnreadBacklogLimit)
	assert.Equal(t, 64, cfg.Realtime.SendBuffer)
	assert.Equal(t, uint64(3), cfg.Ledger.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Ledger.InitialInterval)
	assert.Empty(t, cfg.DeadLetterBucket)
	assert.False(t, cfg.TrustProxy)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("UNREAD_BACKLOG_LIMIT", "5")
	t.Setenv("WS_WRITE_TIMEOUT", "3s")
	t.Setenv("WS_CONNECT_RATE", "0.5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg := Load()
	assert.Equal(t, 5, cfg.Realtime.UnreadBacklogLimit)
	assert.Equal(t, 3*time.Second, cfg.Realtime.WriteTimeout)
	assert.Equal(t, 0.5, cfg.Realtime.ConnectRate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("WS_SEND_BUFFER", "lots")
	t.Setenv("LEDGER_RETRY_MAX", "forever")
	t.Setenv("TRUST_PROXY_HEADERS", "sometimes")

	cfg := Load()
	assert.Equal(t, 64, cfg.Realtime.SendBuffer)
	assert.Equal(t, 2*time.Second, cfg.Ledger.MaxInterval)
	assert.False(t, cfg.TrustProxy)
}
