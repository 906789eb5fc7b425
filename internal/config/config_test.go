package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TOKEN_EXPIRY_HOURS", "")
	t.Setenv("REMEMBER_ME_EXPIRY_DAYS", "")
	t.Setenv("GEO_TIMEOUT", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.TOKEN_EXPIRY_HOURS)
	assert.Equal(t, 30, cfg.REMEMBER_ME_EXPIRY_DAYS)
	assert.Equal(t, 30*time.Minute, cfg.TOKEN_REFRESH_WINDOW)
	assert.Equal(t, time.Second, cfg.GEO_TIMEOUT)
	assert.Nil(t, cfg.KAFKA_BROKERS)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("TOKEN_EXPIRY_HOURS", "2")
	t.Setenv("GEO_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.TOKEN_EXPIRY_HOURS)
	assert.Equal(t, 5*time.Second, cfg.GEO_TIMEOUT, "geo timeout is capped")
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KAFKA_BROKERS)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.TRUSTED_PROXIES)
}

func TestEnvIntDefault_Invalid(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, EnvIntDefault("SOME_INT", 7))
}
