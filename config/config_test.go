package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.Set("DB_HOST", "localhost:3306")
	v.Set("DB_NAME", "bastaku")
	v.Set("SESSION_SECRET", "session-secret")
	v.Set("JWT_SECRET", "jwt-secret")
	return v
}

func TestDefaults(t *testing.T) {
	cfg := FromViper(validViper())
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 2, cfg.Redis.WorkerConcurrency)
	assert.Equal(t, 7*24*time.Hour, cfg.Campaign.Duration)
	assert.Equal(t, 30*time.Second, cfg.Campaign.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TokenTTL)
	assert.True(t, cfg.Session.Secure)
}

func TestOverrides(t *testing.T) {
	v := validViper()
	v.Set("CAMPAIGN_DURATION", "72h")
	v.Set("WORKER_CONCURRENCY", 8)

	cfg := FromViper(v)
	assert.Equal(t, 72*time.Hour, cfg.Campaign.Duration)
	assert.Equal(t, 8, cfg.Redis.WorkerConcurrency)
}

func TestValidateRejectsMissingSecrets(t *testing.T) {
	for _, key := range []string{"DB_HOST", "SESSION_SECRET", "JWT_SECRET"} {
		t.Run(key, func(t *testing.T) {
			v := validViper()
			v.Set(key, "")
			assert.Error(t, FromViper(v).Validate())
		})
	}

	v := validViper()
	v.Set("WORKER_CONCURRENCY", 0)
	assert.Error(t, FromViper(v).Validate())
}
