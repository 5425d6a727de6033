package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := fromLookup(env(nil))
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Empty(t, cfg.APIURL)
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := fromLookup(env(map[string]string{
		"XMTP_ENV":       "production",
		"XMTP_API_URL":   " http://localhost:5556 ",
		"XMTP_TIMEOUT":   "5s",
		"XMTP_LOG_LEVEL": "DEBUG",
		"XMTP_KEYSTORE":  "/tmp/ks",
	}))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Env:      "production",
		APIURL:   "http://localhost:5556",
		Timeout:  5 * time.Second,
		LogLevel: slog.LevelDebug,
		KeyStore: "/tmp/ks",
	}, cfg)
}

func TestFromLookup_Invalid(t *testing.T) {
	_, err := fromLookup(env(map[string]string{"XMTP_TIMEOUT": "soon"}))
	require.Error(t, err)
	_, err = fromLookup(env(map[string]string{"XMTP_LOG_LEVEL": "loud"}))
	require.Error(t, err)
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Config{LogLevel: slog.LevelWarn}.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "k=v")
}
