package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(env map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range env {
		v.Set(k, val)
	}
	return v
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("7d")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = ParseDuration("24h")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	_, err = ParseDuration("xd")
	assert.Error(t, err)
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, "0.02", cfg.CommissionRate.String())
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTRefreshIn)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Contains(t, cfg.PostgresDSN, "dbname=suresend")
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.TrustProxy)
}

func TestFromViper_ProductionRequiresSecrets(t *testing.T) {
	_, err := fromViper(newViper(map[string]any{"APP_ENV": "production"}))
	assert.Error(t, err)

	cfg, err := fromViper(newViper(map[string]any{
		"APP_ENV":            "production",
		"JWT_SECRET":         "a",
		"JWT_REFRESH_SECRET": "b",
		"KAFKA_BROKERS":      "k1:9092, k2:9092",
		"ALLOWED_ORIGINS":    "https://a.example,https://b.example",
		"TRUST_PROXY":        "true",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Len(t, cfg.AllowedOrigins, 2)
	assert.True(t, cfg.TrustProxy)
}

func TestFromViper_RejectsBadCommission(t *testing.T) {
	_, err := fromViper(newViper(map[string]any{"PLATFORM_COMMISSION_RATE": "1.5"}))
	assert.Error(t, err)
}
